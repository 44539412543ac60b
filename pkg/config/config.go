// Package config provides the configuration model for Tributary data sources.
// It defines a single DataSourceConfig structure that every connector consumes,
// validated once at construction so connectors never see a malformed config.
//
// The configuration is organized into logical sections:
//   - Transport: endpoint, HTTP method, headers, query parameters
//   - Auth: credential shape (api_key, bearer, basic)
//   - Pagination: which protocol the source speaks and its parameter names
//   - Reliability: timeout, retry attempts, request rate
//
// Example usage:
//
//	cfg := config.NewDataSourceConfig("https://api.example.com/items")
//	cfg.Pagination.Type = config.PaginationCursor
//	cfg.Auth = config.AuthConfig{Type: config.AuthBearer, Token: "..."}
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"net/http"
	"net/url"
	"time"

	"github.com/tributary-io/tributary/pkg/errors"
)

// AuthType identifies how outbound requests are authenticated.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
)

// PaginationType identifies the pagination protocol a source speaks.
type PaginationType string

const (
	PaginationOffset PaginationType = "offset"
	PaginationCursor PaginationType = "cursor"
	PaginationPage   PaginationType = "page"
)

// Bounds enforced by Validate. Values outside these ranges are rejected
// rather than clamped so misconfiguration surfaces immediately.
const (
	MinTimeout = time.Second
	MaxTimeout = 5 * time.Minute

	MaxRetryAttempts = 10
	MaxBatchSize     = 1000

	DefaultTimeout           = 30 * time.Second
	DefaultBatchSize         = 100
	DefaultRetryAttempts     = 3
	DefaultRequestsPerSecond = 10

	// DefaultAPIKeyHeader carries the key when api_key auth names no header.
	DefaultAPIKeyHeader = "X-API-Key"
)

// AuthConfig describes the credential shape for a source. Tributary only
// shapes the auth header; credential storage and rotation live elsewhere.
type AuthConfig struct {
	// Type selects the authentication scheme
	Type AuthType `yaml:"type" json:"type"`
	// APIKey is sent in the header named by Header (default X-API-Key)
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	// Header overrides the header name used for api_key auth
	Header string `yaml:"header,omitempty" json:"header,omitempty"`
	// Token is sent as a Bearer token
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
	// Username and Password are sent as HTTP basic auth
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// PaginationConfig describes which pagination protocol a source uses and the
// parameter names it expects. Empty parameter names fall back to the
// conventional defaults.
type PaginationConfig struct {
	// Type selects offset, cursor, or page pagination
	Type PaginationType `yaml:"type" json:"type"`
	// LimitParam names the page-size parameter (default "limit")
	LimitParam string `yaml:"limit_param,omitempty" json:"limit_param,omitempty"`
	// OffsetParam names the offset parameter (default "offset")
	OffsetParam string `yaml:"offset_param,omitempty" json:"offset_param,omitempty"`
	// CursorParam names the cursor parameter (default "cursor")
	CursorParam string `yaml:"cursor_param,omitempty" json:"cursor_param,omitempty"`
	// PageParam names the page-number parameter (default "page")
	PageParam string `yaml:"page_param,omitempty" json:"page_param,omitempty"`
	// SinceParam names the incremental filter parameter (default "since")
	SinceParam string `yaml:"since_param,omitempty" json:"since_param,omitempty"`
}

// DataSourceConfig is the validated configuration handed to a connector at
// construction. Connectors treat it as read-only.
type DataSourceConfig struct {
	// Endpoint is the base URL for API sources
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// Method is the HTTP method for API sources (default GET)
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// Headers are applied verbatim to every outbound request
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Params are query parameters applied to every outbound request
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	// Auth shapes the outbound authorization header
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Pagination describes the source's pagination protocol
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`

	// Timeout is the per-request hard deadline
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// BatchSize is the requested page size
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// RetryAttempts caps attempts per request for retryable failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RequestsPerSecond bounds the outbound request rate (0 = unlimited)
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`

	// Path is the root directory for file sources
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Extensions filters file sources to matching suffixes (default all)
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`

	// Driver selects the database driver for database sources (postgres, mysql)
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`
	// DSN is the database connection string
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// Query is the row-producing statement for database sources
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
	// UpdatedColumn names the column used for incremental filtering
	UpdatedColumn string `yaml:"updated_column,omitempty" json:"updated_column,omitempty"`
}

// NewDataSourceConfig creates a config for an API source with defaults applied.
func NewDataSourceConfig(endpoint string) *DataSourceConfig {
	return &DataSourceConfig{
		Endpoint:          endpoint,
		Method:            http.MethodGet,
		Auth:              AuthConfig{Type: AuthNone},
		Pagination:        PaginationConfig{Type: PaginationOffset},
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		RetryAttempts:     DefaultRetryAttempts,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// ApplyDefaults fills zero values with defaults. Called before Validate so a
// sparse YAML config is usable without repeating boilerplate.
func (c *DataSourceConfig) ApplyDefaults() {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.Auth.Type == "" {
		c.Auth.Type = AuthNone
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.Pagination.LimitParam == "" {
		c.Pagination.LimitParam = "limit"
	}
	if c.Pagination.OffsetParam == "" {
		c.Pagination.OffsetParam = "offset"
	}
	if c.Pagination.CursorParam == "" {
		c.Pagination.CursorParam = "cursor"
	}
	if c.Pagination.PageParam == "" {
		c.Pagination.PageParam = "page"
	}
	if c.Pagination.SinceParam == "" {
		c.Pagination.SinceParam = "since"
	}
	if c.Auth.Type == AuthAPIKey && c.Auth.Header == "" {
		c.Auth.Header = DefaultAPIKeyHeader
	}
}

// Validate checks the config for correctness. Validation failures are fatal
// INVALID_CONFIG errors raised before the connector ever touches the network.
func (c *DataSourceConfig) Validate() error {
	c.ApplyDefaults()

	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Newf(errors.CodeInvalidConfig, "endpoint %q is not a well-formed URL", c.Endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf(errors.CodeInvalidConfig, "endpoint scheme %q is not supported", u.Scheme)
		}
	}

	switch c.Method {
	case http.MethodGet, http.MethodPost:
	default:
		return errors.Newf(errors.CodeInvalidConfig, "method %q is not supported", c.Method)
	}

	switch c.Auth.Type {
	case AuthNone:
	case AuthAPIKey:
		if c.Auth.APIKey == "" {
			return errors.New(errors.CodeInvalidConfig, "api_key auth requires an api_key")
		}
	case AuthBearer:
		if c.Auth.Token == "" {
			return errors.New(errors.CodeInvalidConfig, "bearer auth requires a token")
		}
	case AuthBasic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return errors.New(errors.CodeInvalidConfig, "basic auth requires username and password")
		}
	default:
		return errors.Newf(errors.CodeInvalidConfig, "auth type %q is not supported", c.Auth.Type)
	}

	switch c.Pagination.Type {
	case PaginationOffset, PaginationCursor, PaginationPage:
	default:
		return errors.Newf(errors.CodeInvalidConfig, "pagination type %q is not supported", c.Pagination.Type)
	}

	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return errors.Newf(errors.CodeInvalidConfig, "timeout %s outside [%s, %s]", c.Timeout, MinTimeout, MaxTimeout)
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return errors.Newf(errors.CodeInvalidConfig, "batch_size %d outside [1, %d]", c.BatchSize, MaxBatchSize)
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > MaxRetryAttempts {
		return errors.Newf(errors.CodeInvalidConfig, "retry_attempts %d outside [1, %d]", c.RetryAttempts, MaxRetryAttempts)
	}
	if c.RequestsPerSecond < 0 {
		return errors.New(errors.CodeInvalidConfig, "requests_per_second cannot be negative")
	}

	return nil
}
