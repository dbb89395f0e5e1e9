package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. The yaml file carries the
// defaults; environment variables override the deployment-specific values
// (DB credentials, Redis address, signing key).
type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		BaseURL       string `yaml:"base_url"`
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`

	DB struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"db"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	NATS struct {
		URL        string `yaml:"url"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"nats"`

	Media struct {
		StorageRoot   string `yaml:"storage_root"`
		StagingDir    string `yaml:"staging_dir"`
		ScratchDir    string `yaml:"scratch_dir"`
		SigningKey    string `yaml:"signing_key"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"media"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config read: %w", err)
			}
			// Missing file is fine; env and defaults carry it.
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config parse: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Media.SigningKey == "" {
		cfg.Media.SigningKey = "dev-secret-do-not-use-in-prod"
	}
	if cfg.Media.ScratchDir == "" {
		cfg.Media.ScratchDir = os.TempDir()
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.Port = "8080"
	c.Server.BaseURL = "http://localhost:8080"
	c.DB.Host = "localhost"
	c.DB.Port = 5432
	c.DB.SSLMode = "disable"
	c.Redis.Addr = "localhost:6379"
	c.NATS.MaxRetries = 3
	c.Media.StorageRoot = "data/media"
	c.Media.StagingDir = "data/staging"
	c.Media.ScratchDir = os.TempDir()
	c.Media.TokenTTLHours = 24
}

func (c *Config) applyEnv() {
	envString(&c.Server.Port, "PORT")
	envString(&c.Server.BaseURL, "BASE_URL")
	envString(&c.DB.Host, "DB_HOST")
	envString(&c.DB.User, "DB_USER")
	envString(&c.DB.Password, "DB_PASSWORD")
	envString(&c.DB.Name, "DB_NAME")
	envString(&c.Redis.Addr, "REDIS_ADDR")
	envString(&c.NATS.URL, "NATS_URL")
	envString(&c.Media.StorageRoot, "MEDIA_ROOT")
	envString(&c.Media.StagingDir, "STAGING_DIR")
	envString(&c.Media.SigningKey, "MEDIA_SIGNING_KEY")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Media.TokenTTLHours) * time.Hour
}
