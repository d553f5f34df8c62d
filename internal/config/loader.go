package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads YAML config from file, expanding ${ENV} references first.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Secrets.Enabled {
		if err := applySecrets(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// managedSecret is the JSON shape stored in Secrets Manager.
type managedSecret struct {
	RedisPassword string `json:"redis_password"`
	DatabaseURL   string `json:"database_url"`
}

func applySecrets(cfg *Config) error {
	loader, err := NewAWSSecretsLoader()
	if err != nil {
		return fmt.Errorf("secrets loader init: %w", err)
	}

	raw, err := loader.GetSecret(cfg.Secrets.SecretName)
	if err != nil {
		return fmt.Errorf("load secret %s: %w", cfg.Secrets.SecretName, err)
	}

	var sec managedSecret
	if err := json.Unmarshal([]byte(raw), &sec); err != nil {
		return fmt.Errorf("parse secret %s: %w", cfg.Secrets.SecretName, err)
	}

	if sec.RedisPassword != "" {
		cfg.Redis.Password = sec.RedisPassword
	}
	if sec.DatabaseURL != "" {
		cfg.DatabaseURL = sec.DatabaseURL
	}
	return nil
}
