package config

import (
	"strings"
	"testing"
	"time"
)

func TestCleanServer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain host", "mail.example.com", "mail.example.com"},
		{"https prefix", "https://mail.example.com", "mail.example.com"},
		{"http prefix", "http://mail.example.com", "mail.example.com"},
		{"trailing slash", "mail.example.com/", "mail.example.com"},
		{"url with slashes", "https://mail.example.com//", "mail.example.com"},
		{"uppercase scheme", "HTTPS://mail.example.com", "mail.example.com"},
		{"mixed-case scheme", "HtTp://mail.example.com/", "mail.example.com"},
		{"host case preserved", "https://Mail.Example.COM", "Mail.Example.COM"},
		{"surrounding whitespace", "  mail.example.com ", "mail.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanServer(tt.in); got != tt.want {
				t.Errorf("cleanServer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEffectiveUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		domain   string
		want     string
	}{
		{"email fallback", "", "user@example.com", "", "user@example.com"},
		{"explicit username", "jdoe", "user@example.com", "", "jdoe"},
		{"domain prefixed", "jdoe", "user@example.com", "CORP", "CORP\\jdoe"},
		{"domain skipped for upn", "jdoe@corp.local", "user@example.com", "CORP", "jdoe@corp.local"},
		{"domain skipped when already prefixed", "OTHER\\jdoe", "user@example.com", "CORP", "OTHER\\jdoe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Username: tt.username, Email: tt.email, NTDomain: tt.domain}
			if got := c.EffectiveUsername(); got != tt.want {
				t.Errorf("EffectiveUsername() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			AuthType:        AuthTypeNTLM,
			Server:          "mail.example.com",
			Email:           "user@example.com",
			Password:        "secret",
			DaysToFetch:     14,
			MaxEvents:       50,
			DefaultTimezone: "Europe/Budapest",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid ntlm", func(c *Config) {}, ""},
		{"valid basic", func(c *Config) { c.AuthType = AuthTypeBasic }, ""},
		{
			"valid oauth2",
			func(c *Config) {
				c.AuthType = AuthTypeOAuth2
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.TenantID = "tenant"
			},
			"",
		},
		{"missing server", func(c *Config) { c.Server = "" }, "EXCHANGE_SERVER"},
		{"missing email", func(c *Config) { c.Email = "" }, "EXCHANGE_EMAIL"},
		{"missing password", func(c *Config) { c.Password = "" }, "EXCHANGE_PASSWORD"},
		{
			"oauth2 missing tenant",
			func(c *Config) {
				c.AuthType = AuthTypeOAuth2
				c.ClientID = "id"
				c.ClientSecret = "secret"
			},
			"EXCHANGE_TENANT_ID",
		},
		{"unknown auth type", func(c *Config) { c.AuthType = "kerberos" }, "EXCHANGE_AUTH_TYPE"},
		{"bad days", func(c *Config) { c.DaysToFetch = 0 }, "DAYS_TO_FETCH"},
		{"bad max events", func(c *Config) { c.MaxEvents = -1 }, "MAX_EVENTS"},
		{"bad timezone", func(c *Config) { c.DefaultTimezone = "Mars/Olympus" }, "DEFAULT_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXCHANGE_AUTH_TYPE", "basic")
	t.Setenv("EXCHANGE_SERVER", "https://mail.example.com/")
	t.Setenv("EXCHANGE_EMAIL", "user@example.com")
	t.Setenv("EXCHANGE_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server != "mail.example.com" {
		t.Errorf("Server = %q, want cleaned host", cfg.Server)
	}
	if cfg.DaysToFetch != 14 {
		t.Errorf("DaysToFetch = %d, want 14", cfg.DaysToFetch)
	}
	if cfg.MaxEvents != 50 {
		t.Errorf("MaxEvents = %d, want 50", cfg.MaxEvents)
	}
	if cfg.UpdateInterval != 5*time.Minute {
		t.Errorf("UpdateInterval = %v, want 5m", cfg.UpdateInterval)
	}
	if cfg.ReadOnly {
		t.Error("ReadOnly should default to false")
	}
	if cfg.DefaultTimezone != "Europe/Budapest" {
		t.Errorf("DefaultTimezone = %q", cfg.DefaultTimezone)
	}
}

func TestLoadIntervalFloor(t *testing.T) {
	t.Setenv("EXCHANGE_AUTH_TYPE", "basic")
	t.Setenv("EXCHANGE_SERVER", "mail.example.com")
	t.Setenv("EXCHANGE_EMAIL", "user@example.com")
	t.Setenv("EXCHANGE_PASSWORD", "secret")
	t.Setenv("UPDATE_INTERVAL_MIN", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpdateInterval != time.Minute {
		t.Errorf("UpdateInterval = %v, want floor of 1m", cfg.UpdateInterval)
	}
}

func TestLoadOAuth2PinsServer(t *testing.T) {
	t.Setenv("EXCHANGE_AUTH_TYPE", "oauth2")
	t.Setenv("EXCHANGE_SERVER", "mail.example.com")
	t.Setenv("EXCHANGE_EMAIL", "user@example.com")
	t.Setenv("EXCHANGE_CLIENT_ID", "id")
	t.Setenv("EXCHANGE_CLIENT_SECRET", "secret")
	t.Setenv("EXCHANGE_TENANT_ID", "tenant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != OAuth2Server {
		t.Errorf("Server = %q, want %q", cfg.Server, OAuth2Server)
	}
}
