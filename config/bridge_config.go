package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Exchange authentication strategies.
const (
	AuthTypeNTLM   = "ntlm"
	AuthTypeBasic  = "basic"
	AuthTypeOAuth2 = "oauth2"
)

// OAuth2Server is the only server usable with client-credentials auth.
const OAuth2Server = "outlook.office365.com"

type Config struct {
	Port        string
	Environment string

	// Exchange connection
	AuthType         string
	Server           string
	Email            string
	Username         string
	Password         string
	NTDomain         string
	ClientID         string
	ClientSecret     string
	TenantID         string
	AllowInsecureSSL bool

	// Calendar options
	DaysToFetch     int
	MaxEvents       int
	UpdateInterval  time.Duration
	ReadOnly        bool
	DefaultTimezone string

	// Database
	DatabaseURL string
	RedisURL    string

	// API auth
	APIToken  string
	JWTSecret string

	// CORS
	AllowedOrigins []string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	updateMin := getEnvInt("UPDATE_INTERVAL_MIN", 5)
	if updateMin < 1 {
		updateMin = 1
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Exchange connection
		AuthType:         strings.ToLower(getEnv("EXCHANGE_AUTH_TYPE", AuthTypeNTLM)),
		Server:           cleanServer(getEnv("EXCHANGE_SERVER", "")),
		Email:            getEnv("EXCHANGE_EMAIL", ""),
		Username:         getEnv("EXCHANGE_USERNAME", ""),
		Password:         getEnv("EXCHANGE_PASSWORD", ""),
		NTDomain:         getEnv("EXCHANGE_NT_DOMAIN", ""),
		ClientID:         getEnv("EXCHANGE_CLIENT_ID", ""),
		ClientSecret:     getEnv("EXCHANGE_CLIENT_SECRET", ""),
		TenantID:         getEnv("EXCHANGE_TENANT_ID", ""),
		AllowInsecureSSL: getEnvBool("EXCHANGE_ALLOW_INSECURE_SSL", false),

		// Calendar options
		DaysToFetch:     getEnvInt("DAYS_TO_FETCH", 14),
		MaxEvents:       getEnvInt("MAX_EVENTS", 50),
		UpdateInterval:  time.Duration(updateMin) * time.Minute,
		ReadOnly:        getEnvBool("READ_ONLY", false),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "Europe/Budapest"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// API auth
		APIToken:  getEnv("API_TOKEN", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// OAuth2 only works against Office 365.
	if cfg.AuthType == AuthTypeOAuth2 {
		cfg.Server = OAuth2Server
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the per-auth-type required fields.
func (c *Config) Validate() error {
	switch c.AuthType {
	case AuthTypeNTLM, AuthTypeBasic:
		if c.Server == "" {
			return fmt.Errorf("EXCHANGE_SERVER is required for %s auth", c.AuthType)
		}
		if c.Email == "" {
			return fmt.Errorf("EXCHANGE_EMAIL is required for %s auth", c.AuthType)
		}
		if c.Password == "" {
			return fmt.Errorf("EXCHANGE_PASSWORD is required for %s auth", c.AuthType)
		}
	case AuthTypeOAuth2:
		if c.Email == "" {
			return fmt.Errorf("EXCHANGE_EMAIL is required for oauth2 auth")
		}
		if c.ClientID == "" {
			return fmt.Errorf("EXCHANGE_CLIENT_ID is required for oauth2 auth")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("EXCHANGE_CLIENT_SECRET is required for oauth2 auth")
		}
		if c.TenantID == "" {
			return fmt.Errorf("EXCHANGE_TENANT_ID is required for oauth2 auth")
		}
	default:
		return fmt.Errorf("unknown EXCHANGE_AUTH_TYPE: %q (expected ntlm, basic or oauth2)", c.AuthType)
	}

	if c.DaysToFetch < 1 {
		return fmt.Errorf("DAYS_TO_FETCH must be at least 1, got %d", c.DaysToFetch)
	}
	if c.MaxEvents < 1 {
		return fmt.Errorf("MAX_EVENTS must be at least 1, got %d", c.MaxEvents)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return nil
}

// EffectiveUsername returns the credential username: the explicit username
// when set (with the NT domain prefixed unless the value already carries a
// domain), otherwise the mailbox email.
func (c *Config) EffectiveUsername() string {
	username := c.Username
	if username == "" {
		username = c.Email
	}
	if c.NTDomain != "" && !strings.Contains(username, "\\") && !strings.Contains(username, "@") {
		username = c.NTDomain + "\\" + username
	}
	return username
}

// cleanServer strips the scheme and trailing slashes from a server value
// so pasted URLs still work.
func cleanServer(server string) string {
	server = strings.TrimSpace(server)
	lower := strings.ToLower(server)
	switch {
	case strings.HasPrefix(lower, "https://"):
		server = server[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		server = server[len("http://"):]
	}
	return strings.TrimRight(server, "/")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
