package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> parsed config value
)

// Load parses environment variables into cfg using `env` struct tags. Each
// distinct configuration type is parsed once per process and cached; later
// calls for the same type receive a copy of the cached value, so two loads of
// the same type always agree even if the environment changed in between.
//
// A .env file in the working directory, if present, is merged into the
// process environment before the first parse.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		// A missing .env file is not an error; the process environment stands on its own.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := cache.Load(typ); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse %T from environment: %w", *cfg, err)
	}

	// LoadOrStore keeps the first parsed value when two goroutines race,
	// so concurrent callers observe a single consistent config.
	actual, _ := cache.LoadOrStore(typ, *cfg)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics when parsing fails.
// Intended for application startup where a broken environment is unrecoverable.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
