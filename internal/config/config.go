// Package config loads the tool configuration: a TOML file for stable
// settings, the environment for the API token. The token never lives in the
// config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const EnvAPIToken = "TEAMCTL_API_TOKEN"

var (
	ErrServerURLRequired = errors.New("config: server_url required")
	ErrDataDirRequired   = errors.New("config: data_dir required")
	ErrTokenMissing      = errors.New("config: " + EnvAPIToken + " not set")
)

// Config is the resolved tool configuration.
type Config struct {
	ServerURL string
	Token     string
	DataDir   string
	Timeout   time.Duration
	// UserLimit caps the number of active users the validator accepts.
	// Zero disables the check.
	UserLimit int
}

func DefaultConfig() Config {
	return Config{
		DataDir: "data",
		Timeout: 30 * time.Second,
	}
}

type fileConfig struct {
	ServerURL string `toml:"server_url"`
	DataDir   string `toml:"data_dir"`
	Timeout   string `toml:"timeout"`
	UserLimit int    `toml:"user_limit"`
}

// Load reads the TOML file at path and resolves the API token from the
// environment, consulting a .env file in the working directory when the
// variable is unset. An empty path yields the defaults plus the token.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}

		if meta.IsDefined("server_url") {
			cfg.ServerURL = strings.TrimSpace(raw.ServerURL)
		}
		if meta.IsDefined("data_dir") {
			cfg.DataDir = strings.TrimSpace(raw.DataDir)
		}
		if meta.IsDefined("timeout") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
			if err != nil {
				return Config{}, fmt.Errorf("config: parse timeout: %w", err)
			}
			cfg.Timeout = d
		}
		if meta.IsDefined("user_limit") {
			cfg.UserLimit = raw.UserLimit
		}
	}

	cfg.Token = resolveToken()
	return cfg, nil
}

// resolveToken prefers the live environment; a .env file only fills the gap.
func resolveToken() string {
	if token := strings.TrimSpace(os.Getenv(EnvAPIToken)); token != "" {
		return token
	}
	if env, err := godotenv.Read(); err == nil {
		return strings.TrimSpace(env[EnvAPIToken])
	}
	return ""
}

// Validate checks the fields every remote operation needs. Offline commands
// (validate without directory lookups) skip it.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return ErrServerURLRequired
	}
	if c.Token == "" {
		return ErrTokenMissing
	}
	if c.DataDir == "" {
		return ErrDataDirRequired
	}
	return nil
}
