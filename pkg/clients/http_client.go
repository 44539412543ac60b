// Package clients provides the tuned HTTP client used by API connectors.
package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/errors"
)

const userAgent = "Tributary-HTTPClient/1.0"

// HTTPConfig configures transport-level behavior of the client.
type HTTPConfig struct {
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	KeepAlive           time.Duration `json:"keep_alive"`
	EnableHTTP2         bool          `json:"enable_http2"`
	InsecureSkipVerify  bool          `json:"insecure_skip_verify"`
}

// DefaultHTTPConfig returns transport defaults suitable for polling REST APIs.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		KeepAlive:           30 * time.Second,
		EnableHTTP2:         true,
		InsecureSkipVerify:  false,
	}
}

// HTTPClient wraps http.Client with a tuned transport, credential shaping
// from a source's auth configuration, and failure classification. Per-attempt
// deadlines come from the caller's context; the client itself sets none.
type HTTPClient struct {
	logger     *zap.Logger
	httpClient *http.Client

	totalRequests  int64
	failedRequests int64
}

// NewHTTPClient creates an HTTP client from transport config.
func NewHTTPClient(cfg *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	return &HTTPClient{
		logger: logger.With(zap.String("component", "http_client")),
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Request describes a single call against a source endpoint.
type Request struct {
	Method   string
	Endpoint string
	Params   map[string]string
	Headers  map[string]string
	Auth     *config.AuthConfig
	Body     any
}

// DoJSON issues the request and decodes the JSON response body into out.
// Failures are classified: transport errors as CONNECTION_ERROR, context
// deadline as TIMEOUT, auth statuses as AUTH_ERROR, 429 as
// RATE_LIMIT_EXCEEDED, 5xx as SERVER_ERROR, undecodable bodies as
// PARSE_ERROR.
func (c *HTTPClient) DoJSON(ctx context.Context, r *Request, out any) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	atomic.AddInt64(&c.totalRequests, 1)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		atomic.AddInt64(&c.failedRequests, 1)
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, req.URL.Host)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return errors.Wrap(err, errors.CodeParse, "failed to decode response body")
	}
	return nil
}

// Stats returns the total and failed request counts since creation.
func (c *HTTPClient) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *HTTPClient) newRequest(ctx context.Context, r *Request) (*http.Request, error) {
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid endpoint URL")
	}

	if len(r.Params) > 0 {
		q := u.Query()
		for k, v := range r.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeParse, "failed to encode request body")
		}
		body = bytes.NewReader(buf)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to build request")
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	applyAuth(req, r.Auth)
	return req, nil
}

// applyAuth shapes credentials onto the request per the source's auth mode.
func applyAuth(req *http.Request, auth *config.AuthConfig) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case config.AuthAPIKey:
		header := auth.Header
		if header == "" {
			header = config.DefaultAPIKeyHeader
		}
		req.Header.Set(header, auth.APIKey)
	case config.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case config.AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

func classifyTransportError(err error) error {
	if ctxErr := contextCause(err); ctxErr != nil {
		return ctxErr
	}
	return errors.Wrap(err, errors.CodeConnection, "request failed")
}

func contextCause(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, "request deadline exceeded")
	case errors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeUnknown, "request canceled").WithRetryable(false)
	}
	// url.Error wraps the context error; unwrap one level to catch it.
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return errors.Wrap(err, errors.CodeTimeout, "request timed out")
	}
	return nil
}

func classifyStatus(status int, host string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Newf(errors.CodeAuth, "authentication rejected by %s (status %d)", host, status)
	case status == http.StatusRequestTimeout:
		return errors.Newf(errors.CodeTimeout, "request to %s timed out (status %d)", host, status)
	case status == http.StatusTooManyRequests:
		return errors.Newf(errors.CodeRateLimit, "rate limited by %s (status %d)", host, status)
	case status >= 500:
		return errors.Newf(errors.CodeServer, "server error from %s (status %d)", host, status)
	default:
		return errors.Newf(errors.CodeUnknown, "unexpected status %d from %s", status, host)
	}
}
