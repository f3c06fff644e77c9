package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Port = 0 }, "port must be between"},
		{"missing database", func(c *Config) { c.Database = "" }, "name is required"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"zero max open conns", func(c *Config) { c.MaxOpenConns = 0 }, "max_open_conns"},
		{"idle exceeds open", func(c *Config) { c.MaxIdleConns = 100 }, "max_idle_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig("localhost", "app", "user", "secret")
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	config := DefaultConfig("db.internal", "app", "user", "secret")
	config.Port = 3307

	dsn, err := config.GetDSN()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dsn, "user:secret@tcp(db.internal:3307)/app"))
	assert.Contains(t, dsn, "parseTime=true")
}

func TestGetDSNSkipVerify(t *testing.T) {
	config := DefaultConfig("db.internal", "app", "user", "secret")
	config.SSL.Enabled = true
	config.SSL.SkipVerify = true

	dsn, err := config.GetDSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=skip-verify")
}
