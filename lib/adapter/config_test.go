package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cfg.URL, "plocal:"), "default url should be embedded, got %q", cfg.URL)
	assert.True(t, strings.HasSuffix(cfg.URL, "ycsb"), "default url should end in the database name, got %q", cfg.URL)
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, "admin", cfg.Password)
	assert.False(t, cfg.FreshDatabase)
	assert.Equal(t, defaultPoolCapacity, cfg.PoolCapacity)
	assert.Equal(t, defaultBootstrapMaxRetries, cfg.BootstrapMaxRetries)
	assert.Equal(t, defaultBootstrapBackoff, cfg.BootstrapBackoff)
}

func TestResolveConfigOverrides(t *testing.T) {
	cfg, err := ResolveConfig(map[string]string{
		PropURL:                 "remote:localhost:2424/bench",
		PropUser:                "benchuser",
		PropPassword:            "secret",
		PropFreshDatabase:       "true",
		PropPoolCapacity:        "8",
		PropBootstrapMaxRetries: "0",
		PropBootstrapBackoffMS:  "250",
	})
	require.NoError(t, err)

	assert.Equal(t, "remote:localhost:2424/bench", cfg.URL)
	assert.Equal(t, "benchuser", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.True(t, cfg.FreshDatabase)
	assert.Equal(t, 8, cfg.PoolCapacity)
	assert.Equal(t, 0, cfg.BootstrapMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BootstrapBackoff)
}

func TestResolveConfigFreshDatabaseParsing(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"no", false},
		{"banana", false},
		{"", false},
	}

	for _, tt := range tests {
		cfg, err := ResolveConfig(map[string]string{PropFreshDatabase: tt.value})
		require.NoError(t, err)
		assert.Equal(t, tt.want, cfg.FreshDatabase, "fresh-database=%q", tt.value)
	}
}

func TestResolveConfigInvalidValues(t *testing.T) {
	for _, props := range []map[string]string{
		{PropPoolCapacity: "zero"},
		{PropPoolCapacity: "0"},
		{PropPoolCapacity: "-1"},
		{PropBootstrapMaxRetries: "many"},
		{PropBootstrapMaxRetries: "-1"},
		{PropBootstrapBackoffMS: "soon"},
	} {
		_, err := ResolveConfig(props)
		assert.Error(t, err, "props %v", props)
	}
}
