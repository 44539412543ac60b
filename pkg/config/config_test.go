package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-io/tributary/pkg/errors"
)

func TestNewDataSourceConfigDefaults(t *testing.T) {
	cfg := NewDataSourceConfig("https://api.example.com/items")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "limit", cfg.Pagination.LimitParam)
	assert.Equal(t, "since", cfg.Pagination.SinceParam)
}

func TestValidateRejectsBadEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"no scheme", "api.example.com/items"},
		{"bad scheme", "ftp://api.example.com"},
		{"garbage", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDataSourceConfig(tt.endpoint)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidConfig))
		})
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		auth AuthConfig
		ok   bool
	}{
		{"none", AuthConfig{Type: AuthNone}, true},
		{"api key present", AuthConfig{Type: AuthAPIKey, APIKey: "k"}, true},
		{"api key missing", AuthConfig{Type: AuthAPIKey}, false},
		{"bearer present", AuthConfig{Type: AuthBearer, Token: "t"}, true},
		{"bearer missing", AuthConfig{Type: AuthBearer}, false},
		{"basic present", AuthConfig{Type: AuthBasic, Username: "u", Password: "p"}, true},
		{"basic half", AuthConfig{Type: AuthBasic, Username: "u"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDataSourceConfig("https://api.example.com")
			cfg.Auth = tt.auth
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsCode(err, errors.CodeInvalidConfig))
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := NewDataSourceConfig("https://api.example.com")
	cfg.Timeout = 10 * time.Minute
	assert.Error(t, cfg.Validate())

	cfg = NewDataSourceConfig("https://api.example.com")
	cfg.BatchSize = MaxBatchSize + 1
	assert.Error(t, cfg.Validate())

	cfg = NewDataSourceConfig("https://api.example.com")
	cfg.RetryAttempts = MaxRetryAttempts + 1
	assert.Error(t, cfg.Validate())

	cfg = NewDataSourceConfig("https://api.example.com")
	cfg.RequestsPerSecond = -1
	assert.Error(t, cfg.Validate())
}

func TestAPIKeyHeaderDefault(t *testing.T) {
	cfg := NewDataSourceConfig("https://api.example.com")
	cfg.Auth = AuthConfig{Type: AuthAPIKey, APIKey: "secret"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "X-API-Key", cfg.Auth.Header)
}

func TestLoadManifest(t *testing.T) {
	t.Setenv("TRIBUTARY_TEST_TOKEN", "tok-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	manifest := `
sources:
  - id: news
    name: News API
    type: api
    config:
      endpoint: https://api.example.com/articles
      auth:
        type: bearer
        token: ${TRIBUTARY_TEST_TOKEN}
      pagination:
        type: cursor
      requests_per_second: 5
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Sources, 1)

	src := m.Sources[0]
	assert.Equal(t, "news", src.ID)
	assert.Equal(t, "tok-123", src.Config.Auth.Token)
	assert.Equal(t, PaginationCursor, src.Config.Pagination.Type)
	// Defaults applied during validation.
	assert.Equal(t, DefaultBatchSize, src.Config.BatchSize)
}

func TestLoadManifestRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	manifest := `
sources:
  - id: a
    type: api
    config:
      endpoint: https://api.example.com/one
  - id: a
    type: api
    config:
      endpoint: https://api.example.com/two
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	_, err := LoadManifest(path)
	assert.Error(t, err)
}

func TestLoadManifestRejectsInvalidSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	manifest := `
sources:
  - id: bad
    type: api
    config:
      endpoint: not-a-url
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
}
