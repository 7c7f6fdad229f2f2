package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "http://localhost:8088", cfg.API.URL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.List.PageSize)
	assert.Equal(t, 350*time.Millisecond, cfg.List.SearchDebounce)
	assert.Equal(t, 1, cfg.List.RetryAttempts)
	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `api_url: https://api.staffproof.test/
api_token: secret
timeout: 3s
rate_per_second: 5
page_size: 25
search_debounce: 100ms
retry:
  max_attempts: 4
latency: 40ms
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.staffproof.test", cfg.API.URL, "trailing slash trimmed")
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5.0, cfg.API.RatePerSecond)
	assert.Equal(t, 25, cfg.List.PageSize)
	assert.Equal(t, 100*time.Millisecond, cfg.List.SearchDebounce)
	assert.Equal(t, 4, cfg.List.RetryAttempts)
	assert.Equal(t, 40*time.Millisecond, cfg.Server.Latency)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://file.test\n"), 0o600))

	t.Setenv("STAFFPROOF_API_URL", "http://env.test")
	t.Setenv("STAFFPROOF_API_TOKEN", "from-env")
	t.Setenv("STAFFPROOF_RETRY_MAX_ATTEMPTS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.test", cfg.API.URL)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, 3, cfg.List.RetryAttempts)
}

func TestPageSizeSnapsToAllowedSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: 13\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.List.PageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad scheme", "api_url: ftp://x\n"},
		{"zero timeout", "timeout: 0s\n"},
		{"negative rate", "rate_per_second: -1\n"},
		{"negative debounce", "search_debounce: -5ms\n"},
		{"negative latency", "latency: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [unclosed\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultsWithoutFile(t *testing.T) {
	t.Setenv("STAFFPROOF_PAGE_SIZE", "50")
	cfg := Defaults()
	assert.Equal(t, 50, cfg.List.PageSize)
	assert.Empty(t, cfg.File)
	assert.NoError(t, cfg.Validate())
}
