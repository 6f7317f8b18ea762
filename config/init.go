package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

func InitConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional, the environment may be set directly
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	return &cfg, nil
}
