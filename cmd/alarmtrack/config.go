package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration. Values come from an optional YAML
// file; environment variables override the file.
type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	SQLiteDSN   string `yaml:"sqlite_dsn"`

	OIDC struct {
		IssuerURL         string `yaml:"issuer_url"`
		ClientID          string `yaml:"client_id"`
		SkipClientIDCheck bool   `yaml:"skip_client_id_check"`
	} `yaml:"oidc"`

	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// LoadConfig loads configuration from a YAML file and environment
// variables. Environment variables override YAML values.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:      ":8080",
		SQLiteDSN: "file:alarmtrack.db?cache=shared&_fk=1",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if p := os.Getenv("PORT"); p != "" { // Heroku-style
		cfg.Addr = ":" + p
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_DSN"); v != "" {
		cfg.SQLiteDSN = v
	}
	if v := os.Getenv("OIDC_ISSUER_URL"); v != "" {
		cfg.OIDC.IssuerURL = v
	}
	if v := os.Getenv("OIDC_CLIENT_ID"); v != "" {
		cfg.OIDC.ClientID = v
	}
	if v := os.Getenv("ALARMTRACK_ADMIN_EMAIL"); v != "" {
		cfg.AdminEmail = v
	}
	if v := os.Getenv("ALARMTRACK_ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required (set ADDR or yaml)")
	}
	if c.OIDC.IssuerURL != "" && c.OIDC.ClientID == "" && !c.OIDC.SkipClientIDCheck {
		return fmt.Errorf("oidc.client_id is required when oidc.issuer_url is set (or enable skip_client_id_check)")
	}
	return nil
}
