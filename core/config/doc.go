// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/searchstore/core/config"
//
//	type EngineConfig struct {
//		Addresses      []string      `env:"ENGINE_ADDRESSES,required"`
//		RequestTimeout time.Duration `env:"ENGINE_REQUEST_TIMEOUT" envDefault:"90s"`
//		VerifyCerts    bool          `env:"ENGINE_VERIFY_CERTS" envDefault:"true"`
//	}
//
//	func main() {
//		var cfg EngineConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 EngineConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 EngineConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently, so packages can declare their own
// configuration structs without coordinating load order.
package config
