package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath      = "CONFIG_PATH"
	EnvDBConnection    = "DB_CONNECTION"
	EnvJWTSecret       = "JWT_SECRET"
	EnvJWTExpiry       = "JWT_EXPIRY"
	EnvUpstreamBaseURL = "UPSTREAM_BASE_URL"
	EnvAdminUsername   = "ADMIN_USERNAME"
	EnvAdminPassword   = "ADMIN_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// UpstreamConfig holds upstream dating API settings.
type UpstreamConfig struct {
	BaseURL     string `yaml:"base-url"`
	AuthBaseURL string `yaml:"auth-base-url"`
	RateLimit   int    `yaml:"rate-limit"`
}

// AdminConfig holds the bootstrap admin account seeded at startup.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// Default upstream endpoints when the config omits them.
const (
	DefaultUpstreamBaseURL     = "https://api.gotinder.com"
	DefaultUpstreamAuthBaseURL = "https://api.gotinder.com/v2/auth"
)

// LoadUpstreamConfig loads upstream API settings from the YAML config file.
func LoadUpstreamConfig(configPath string) (UpstreamConfig, error) {
	// fileConfig maps the YAML fields needed for upstream settings.
	type fileConfig struct {
		Upstream UpstreamConfig `yaml:"upstream"`
	}

	var result UpstreamConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Upstream
		}
	}

	if baseURL := strings.TrimSpace(os.Getenv(EnvUpstreamBaseURL)); baseURL != "" {
		result.BaseURL = baseURL
	}
	result.BaseURL = strings.TrimSpace(result.BaseURL)
	if result.BaseURL == "" {
		result.BaseURL = DefaultUpstreamBaseURL
	}
	result.AuthBaseURL = strings.TrimSpace(result.AuthBaseURL)
	if result.AuthBaseURL == "" {
		result.AuthBaseURL = DefaultUpstreamAuthBaseURL
	}
	if result.RateLimit < 0 {
		result.RateLimit = 0
	}
	return result, nil
}

// LoadAdminConfig loads the bootstrap admin account from config and env.
func LoadAdminConfig(configPath string) (AdminConfig, error) {
	// fileConfig maps the YAML fields needed for the bootstrap admin.
	type fileConfig struct {
		Admin AdminConfig `yaml:"admin"`
	}

	var result AdminConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Admin
		}
	}

	if username := strings.TrimSpace(os.Getenv(EnvAdminUsername)); username != "" {
		result.Username = username
	}
	if password := strings.TrimSpace(os.Getenv(EnvAdminPassword)); password != "" {
		result.Password = password
	}
	result.Username = strings.TrimSpace(result.Username)
	return result, nil
}
