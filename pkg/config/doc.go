// Package config fills typed configuration structs from environment
// variables using github.com/caarlos0/env tags.
//
// A .env file in the working directory is read once before the first Load;
// LoadEnv reads additional files, later files overriding earlier ones.
// Each struct type is parsed once and cached, so every component that
// loads, say, pg.Config sees the same values. Reload bypasses the cache.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
