package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("API_HOST", "orders.example.com")
	t.Setenv("API_SCHEME", "")
	t.Setenv("GATEWAY_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "https", cfg.APIScheme)
	assert.Equal(t, "orders.example.com", cfg.APIHost)
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		desc     string
		redisURL string
		apiHost  string
		scheme   string
	}{
		{"missing redis url", "", "orders.example.com", "https"},
		{"missing api host", "redis://localhost:6379", "", "https"},
		{"bad scheme", "redis://localhost:6379", "orders.example.com", "ftp"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Setenv("REDIS_URL", tc.redisURL)
			t.Setenv("API_HOST", tc.apiHost)
			t.Setenv("API_SCHEME", tc.scheme)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
