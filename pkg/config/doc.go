// Package config loads environment variables into typed configuration
// structs using caarlos0/env struct tags.
//
// A .env file in the working directory is read once (via joho/godotenv)
// before the first struct is parsed, so local development does not need
// exported variables. Every struct type is parsed at most once per process and
// cached; later calls for the same type return the cached copy.
//
// # Usage
//
//	var cfg notifications.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// MustLoad panics instead of returning an error and is meant for main.
// LoadEnv reads additional env files (for example ".env.test") before any
// struct is parsed.
package config
