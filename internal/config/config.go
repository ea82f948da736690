package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      App      `yaml:"app"`
	Server   Server   `yaml:"server"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Catalog  Catalog  `yaml:"catalog"`
	Timing   Timing   `yaml:"timing"`
}

type App struct {
	Name     string `yaml:"name" env:"QUIZ_APP_NAME"`
	Env      string `yaml:"env" env:"QUIZ_APP_ENV"`
	LogLevel string `yaml:"logLevel" env:"QUIZ_LOG_LEVEL"`
}

type Server struct {
	Port            string `yaml:"port" env:"QUIZ_PORT"`
	ShutdownTimeout string `yaml:"shutdownTimeout" env:"QUIZ_SHUTDOWN_TIMEOUT"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
	Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
	TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
}

type Postgres struct {
	URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
}

type Catalog struct {
	Default string `yaml:"default" env:"QUIZ_CATALOG_DEFAULT"`
	TTL     string `yaml:"ttl" env:"QUIZ_CATALOG_TTL"`
}

// Timing holds session pacing; empty values fall back to the built-in delays.
type Timing struct {
	RevealDelay  string `yaml:"revealDelay" env:"QUIZ_REVEAL_DELAY"`
	LoadingDelay string `yaml:"loadingDelay" env:"QUIZ_LOADING_DELAY"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	cfg := Config{}
	cfg.App.Name = "cuequiz"
	cfg.App.Env = "development"
	cfg.App.LogLevel = "info"
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Catalog.Default = "leipzig"
	cfg.Catalog.TTL = "10m"
	cfg.Redis.TTL = "10m"
	return cfg
}

// Load reads YAML config from path on top of Defaults, then applies QUIZ_* environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
