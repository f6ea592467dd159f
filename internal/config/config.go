// Package config loads application configuration from a YAML file plus
// environment variables.
//
// Precedence, lowest to highest: built-in defaults, the config file (if one
// exists at the given path), environment variables. Secrets (API keys, the
// JWT signing secret, the database password) are expected to come from the
// environment, never from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full application configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver     string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// GatewayConfig selects and configures the language-model backend.
type GatewayConfig struct {
	Provider       string   `mapstructure:"provider"` // "openai" or "gemini"
	Model          string   `mapstructure:"model"`
	Temperature    float32  `mapstructure:"temperature"`
	MaxTokens      int      `mapstructure:"max_tokens"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	OpenAIKey      string   `mapstructure:"openai_key"`
	GeminiKey      string   `mapstructure:"gemini_key"`
	Fallbacks      []string `mapstructure:"fallbacks"` // canned replies; built-in set when empty
}

type AuthConfig struct {
	JWTSecret         string `mapstructure:"jwt_secret"`
	TokenTTLMinutes   int    `mapstructure:"token_ttl_minutes"`
	PasswordMinLength int    `mapstructure:"password_min_length"`
}

type AdminConfig struct {
	// Emails is the allow-list: only these accounts can read usage reports.
	Emails      []string `mapstructure:"emails"`
	RecentLimit int      `mapstructure:"recent_limit"`
}

type QuotaConfig struct {
	// FreeMessages is the per-guest allowance for unauthenticated chat.
	// Zero disables the quota entirely.
	FreeMessages int `mapstructure:"free_messages"`
}

type SafetyConfig struct {
	// IPQSKey enables the external URL reputation check in scam mode.
	// Empty key = no external check, the model analyses the text alone.
	IPQSKey string `mapstructure:"ipqs_key"`
}

type RateLimitConfig struct {
	// PerMinute and Burst throttle the auth endpoints per email/IP.
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// Load reads configuration from the file at path (optional) and the
// environment. Env vars use the PMAI_ prefix with underscores for nesting,
// e.g. PMAI_GATEWAY_OPENAI_KEY, PMAI_AUTH_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "pmai.db")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("gateway.provider", "openai")
	v.SetDefault("gateway.model", "gpt-3.5-turbo")
	v.SetDefault("gateway.temperature", 0.7)
	v.SetDefault("gateway.max_tokens", 500)
	v.SetDefault("gateway.timeout_seconds", 30)
	// Secrets default to empty so viper knows the keys exist; AutomaticEnv
	// only resolves keys it has seen, and Unmarshal relies on that.
	v.SetDefault("gateway.openai_key", "")
	v.SetDefault("gateway.gemini_key", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("safety.ipqs_key", "")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "pmai")
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("auth.password_min_length", 8)
	v.SetDefault("admin.recent_limit", 10)
	v.SetDefault("quota.free_messages", 0)
	v.SetDefault("rate_limit.per_minute", 10)
	v.SetDefault("rate_limit.burst", 5)

	v.SetEnvPrefix("PMAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional: defaults plus env vars are a complete
	// configuration on their own.
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Gateway.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown gateway provider %q", c.Gateway.Provider)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required (set PMAI_AUTH_JWT_SECRET)")
	}
	return nil
}
