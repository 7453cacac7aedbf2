package config

import (
	"errors"
	"os"
)

type Config struct {
	Port       string
	ServiceURL string
	ServiceKey string
}

// Load reads configuration from the environment. The remote service endpoint
// and public key have no defaults: without them the page cannot boot.
func Load() (Config, error) {
	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		ServiceURL: os.Getenv("SERVICE_URL"),
		ServiceKey: os.Getenv("SERVICE_KEY"),
	}
	if cfg.ServiceURL == "" {
		return cfg, errors.New("SERVICE_URL is not set")
	}
	if cfg.ServiceKey == "" {
		return cfg, errors.New("SERVICE_KEY is not set")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
