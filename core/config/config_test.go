package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/searchstore/core/config"
)

func TestLoad(t *testing.T) {
	t.Run("parses environment into struct fields", func(t *testing.T) {
		type engineConfig struct {
			Addresses []string      `env:"TEST_CFG_ADDRESSES" envSeparator:","`
			Timeout   time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"90s"`
			Verify    bool          `env:"TEST_CFG_VERIFY" envDefault:"true"`
		}

		t.Setenv("TEST_CFG_ADDRESSES", "http://one:9200,http://two:9200")
		t.Setenv("TEST_CFG_VERIFY", "false")

		var cfg engineConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, []string{"http://one:9200", "http://two:9200"}, cfg.Addresses)
		assert.Equal(t, 90*time.Second, cfg.Timeout, "default applies when variable unset")
		assert.False(t, cfg.Verify)
	})

	t.Run("caches per type across environment changes", func(t *testing.T) {
		type cachedConfig struct {
			Value string `env:"TEST_CFG_CACHED" envDefault:"first"`
		}

		t.Setenv("TEST_CFG_CACHED", "first")
		var first cachedConfig
		require.NoError(t, config.Load(&first))
		require.Equal(t, "first", first.Value)

		t.Setenv("TEST_CFG_CACHED", "second")
		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "first", second.Value, "cached value must win over a changed environment")
	})

	t.Run("rejects nil pointer", func(t *testing.T) {
		type nilConfig struct{}
		var cfg *nilConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilConfig)
	})

	t.Run("reports missing required variables", func(t *testing.T) {
		type strictConfig struct {
			Secret string `env:"TEST_CFG_ABSENT,required"`
		}

		var cfg strictConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TEST_CFG_ABSENT")
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("returns populated config", func(t *testing.T) {
		type mustConfig struct {
			Value string `env:"TEST_CFG_MUST" envDefault:"fallback"`
		}

		var cfg mustConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "fallback", cfg.Value)
	})

	t.Run("panics on parse failure", func(t *testing.T) {
		type brokenConfig struct {
			Required string `env:"TEST_CFG_MUST_ABSENT,required"`
		}

		var cfg brokenConfig
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})
}
