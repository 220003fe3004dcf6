// server/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string        `yaml:"port"`
	DatabaseURL  string        `yaml:"database_url"`
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	LogLevel     string        `yaml:"log_level"`
	LogPretty    bool          `yaml:"log_pretty"`
	SeedFile     string        `yaml:"seed_file"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	AllowOrigins string        `yaml:"allow_origins"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		Password:     "dev",
		LogLevel:     "info",
		FetchTimeout: 10 * time.Second,
		AllowOrigins: "*",
	}
}

// Load reads .env (if present), then the YAML file named by MEMO_CONFIG (if
// set), then MEMO_* environment variables. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("MEMO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Port, "MEMO_PORT")
	setString(&c.DatabaseURL, "MEMO_DATABASE_URL")
	setString(&c.Password, "MEMO_PASSWORD")
	setString(&c.PasswordHash, "MEMO_PASSWORD_HASH")
	setString(&c.LogLevel, "MEMO_LOG_LEVEL")
	setString(&c.SeedFile, "MEMO_SEED_FILE")
	setString(&c.AllowOrigins, "MEMO_ALLOW_ORIGINS")

	if v := os.Getenv("MEMO_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MEMO_LOG_PRETTY: %w", err)
		}
		c.LogPretty = b
	}
	if v := os.Getenv("MEMO_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEMO_FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port %q: %w", c.Port, err)
	}
	if c.Password == "" && c.PasswordHash == "" {
		return errors.New("password or password_hash is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %v", c.FetchTimeout)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
