package snapshot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"disabled skips validation", func(c *Config) { c.Enabled = false; c.Host = "" }, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, true},
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }, true},
		{"missing key prefix", func(c *Config) { c.KeyPrefix = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisabledStoreRefusesOperations(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false

	store, err := NewStore(config)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "Customer", 7)
	assert.True(t, IsCacheDisabled(err))
	assert.True(t, IsCacheDisabled(store.Set(ctx, "Customer", 7, nil)))
	assert.True(t, IsCacheDisabled(store.Invalidate(ctx, "Customer", 7)))

	// disabled is a valid configuration state, not a health failure
	assert.NoError(t, store.Ping(ctx))
	assert.NoError(t, store.Close())
}

func TestKeyFor(t *testing.T) {
	store := &Store{config: DefaultConfig()}

	assert.Equal(t, "orm4go:snap:Customer:7", store.keyFor("Customer", 7))
	assert.Equal(t, "orm4go:snap:Customer:7", store.keyFor("Customer", uint(7)))
	assert.Equal(t, "orm4go:snap:Order:a1b2", store.keyFor("Order", "a1b2"))
}

func TestKeyForHashesAwkwardIdentifiers(t *testing.T) {
	store := &Store{config: DefaultConfig()}

	withSeparator := store.keyFor("Customer", "tenant:42")
	assert.NotContains(t, strings.TrimPrefix(withSeparator, "orm4go:snap:Customer:"), ":")

	long := store.keyFor("Customer", strings.Repeat("x", 100))
	parts := strings.Split(long, ":")
	require.Len(t, parts, 4)
	assert.Len(t, parts[3], 17)

	// hashing is deterministic
	assert.Equal(t, long, store.keyFor("Customer", strings.Repeat("x", 100)))
}
