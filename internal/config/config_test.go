package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/helpdesk")
	t.Setenv("TICKETS_DEFAULT_PAGE_SIZE", "")
	t.Setenv("EVENTS_REDIS_CHANNEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/helpdesk", cfg.Postgres.DSN)
	assert.Equal(t, 10, cfg.Tickets.DefaultPageSize)
	assert.Equal(t, 100, cfg.Tickets.MaxPageSize)
	assert.Equal(t, "helpdesk.events", cfg.Events.Channel)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TICKETS_DEFAULT_PAGE_SIZE", "25")
	t.Setenv("TICKETS_MAX_PAGE_SIZE", "50")
	t.Setenv("EVENTS_PUBLISH_REDIS", "false")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 25, cfg.Tickets.DefaultPageSize)
	assert.False(t, cfg.Events.PublishToRedis)
	assert.Equal(t, 12, cfg.Auth.BcryptCost, "unparsable ints fall back to the default")
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			App:     AppConfig{Env: "development"},
			Auth:    AuthConfig{JWTSecret: "dev-secret"},
			Tickets: TicketsConfig{DefaultPageSize: 10, MaxPageSize: 100},
			Events:  EventsConfig{PublishToRedis: true, Channel: "helpdesk.events"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero default page", mutate: func(c *Config) { c.Tickets.DefaultPageSize = 0 }, wantErr: "TICKETS_DEFAULT_PAGE_SIZE"},
		{name: "max below default", mutate: func(c *Config) { c.Tickets.MaxPageSize = 5 }, wantErr: "TICKETS_MAX_PAGE_SIZE"},
		{name: "dev secret in production", mutate: func(c *Config) { c.App.Env = "production" }, wantErr: "AUTH_JWT_SECRET"},
		{name: "publishing without channel", mutate: func(c *Config) { c.Events.Channel = "" }, wantErr: "EVENTS_REDIS_CHANNEL"},
		{name: "channel ignored when disabled", mutate: func(c *Config) {
			c.Events.PublishToRedis = false
			c.Events.Channel = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	assert.Zero(t, AppConfig{}.RequestTimeout())
	assert.Equal(t, "30s", AppConfig{RequestTimeoutSeconds: 30}.RequestTimeout().String())
}
