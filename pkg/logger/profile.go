package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Deployment environments understood by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Format selects the handler that renders records.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type profile struct {
	level  slog.Level
	format Format
}

var profiles = map[string]profile{
	EnvDevelopment: {level: slog.LevelDebug, format: FormatText},
	EnvStaging:     {level: slog.LevelInfo, format: FormatJSON},
	EnvProduction:  {level: slog.LevelInfo, format: FormatJSON},
}

var envAliases = map[string]string{
	"dev":   EnvDevelopment,
	"local": EnvDevelopment,
	"stage": EnvStaging,
	"prod":  EnvProduction,
}

// NormalizeEnv maps aliases such as "prod" to their canonical name.
// Unknown values fall back to development.
func NormalizeEnv(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if alias, ok := envAliases[env]; ok {
		return alias
	}
	if _, ok := profiles[env]; ok {
		return env
	}
	return EnvDevelopment
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logger: invalid level %q", s)
	}
	return l, nil
}

// ParseFormat accepts json or text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("logger: invalid format %q", s)
	}
}

// Config carries operator overrides read from the environment. Empty
// fields keep whatever the environment profile chose.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// Option turns the overrides into a logger option. It fails on values
// ParseLevel or ParseFormat reject.
func (c Config) Option() (Option, error) {
	var (
		level  *slog.Level
		format Format
	)
	if c.Level != "" {
		l, err := ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		level = &l
	}
	if c.Format != "" {
		f, err := ParseFormat(c.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	return func(s *settings) {
		if level != nil {
			s.level = *level
		}
		if format != "" {
			s.format = format
		}
	}, nil
}
