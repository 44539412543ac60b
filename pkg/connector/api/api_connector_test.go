package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/connector/base"
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/errors"
)

func isProbe(r *http.Request) bool {
	return r.URL.Query().Get("limit") == "1"
}

// offsetServer serves total items in offset-paginated pages with exact
// total/offset/limit bookkeeping. Probe requests are not counted.
func offsetServer(t *testing.T, total int, pageRequests *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r) {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		atomic.AddInt64(pageRequests, 1)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		var items []map[string]any
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, map[string]any{
				"id":    fmt.Sprintf("item-%d", i),
				"title": fmt.Sprintf("Item %d", i),
				"body":  fmt.Sprintf("Body of item %d", i),
			})
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":  items,
			"total":  total,
			"offset": offset,
			"limit":  limit,
		})
	}))
}

func newTestConnector(t *testing.T, endpoint string, mutate func(*config.DataSourceConfig)) *Connector {
	t.Helper()
	cfg := config.NewDataSourceConfig(endpoint)
	cfg.BatchSize = 10
	cfg.RetryAttempts = 3
	cfg.RequestsPerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}

	conn, err := NewConnector(&core.DataSource{
		ID: "src-1", Name: "test-source", Type: core.SourceTypeAPI, Config: cfg,
	})
	require.NoError(t, err)
	return conn
}

func TestSyncThreePageOffset(t *testing.T) {
	var pageRequests int64
	srv := offsetServer(t, 25, &pageRequests)
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, nil)

	result, err := conn.Sync(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 25, result.DocumentsProcessed)
	assert.Equal(t, 25, result.DocumentsAdded)
	assert.Equal(t, int64(3), atomic.LoadInt64(&pageRequests))
	assert.Len(t, conn.GetContent(), 25)
	assert.Equal(t, core.StateConnected, conn.State())
	assert.False(t, conn.Source().LastSync.IsZero())
}

func TestSyncRecoversFromTransient503(t *testing.T) {
	var pageAttempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r) {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		if atomic.AddInt64(&pageAttempts, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":  []map[string]any{{"id": "1", "title": "T", "body": "B"}},
			"total":  1,
			"offset": 0,
			"limit":  10,
		})
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, func(cfg *config.DataSourceConfig) {
		cfg.RetryAttempts = 3
	})
	// Shrink backoff so the test does not sit through real delays.
	conn.support.Retry = base.NewExecutor(base.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Multiplier:  2,
	}, conn.support.Metrics, zap.NewNop())

	result, err := conn.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DocumentsProcessed)

	m := conn.Metrics()
	assert.Equal(t, int64(2), m.FailedQueries)
	assert.Equal(t, int64(1), m.SuccessfulQueries)
}

func TestSyncAuthFailureSingleAttempt(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, func(cfg *config.DataSourceConfig) {
		cfg.RetryAttempts = 5
	})

	result, err := conn.Sync(context.Background(), false)
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, errors.CodeAuth, errors.CodeOf(err))
	assert.False(t, errors.Retryable(err))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))
	assert.True(t, conn.Source().LastSync.IsZero())
	assert.Nil(t, conn.GetContent())
}

func TestSyncFailureDiscardsPartialProgress(t *testing.T) {
	var pageRequests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r) {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		// First page succeeds, second page is a hard parse failure.
		if atomic.AddInt64(&pageRequests, 1) == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"id": "1", "title": "T"}},
				"total": 25, "offset": 0, "limit": 10,
			})
			return
		}
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, nil)

	// Seed prior content via a state we can observe being cleared.
	result, err := conn.Sync(context.Background(), false)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, errors.CodeParse, errors.CodeOf(err))
	assert.Nil(t, conn.GetContent())
	assert.True(t, conn.Source().LastSync.IsZero())
}

func TestSyncIncrementalSendsSince(t *testing.T) {
	var sinceSeen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProbe(r) {
			sinceSeen.Store(r.URL.Query().Get("since"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{}, "total": 0, "offset": 0, "limit": 10,
		})
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, nil)
	last := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	conn.Source().LastSync = last

	result, err := conn.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "2026-08-01T00:00:00Z", sinceSeen.Load())

	// LastSync advanced past the seeded point.
	assert.True(t, conn.Source().LastSync.After(last))
}

func TestSyncSafetyCap(t *testing.T) {
	var pageRequests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r) {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		atomic.AddInt64(&pageRequests, 1)
		// Always claims another cursor: a misbehaving API.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":       []map[string]any{{"id": "1", "title": "T"}},
			"next_cursor": "again",
		})
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, func(cfg *config.DataSourceConfig) {
		cfg.Pagination.Type = config.PaginationCursor
	})

	result, err := conn.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(maxPageRequests), atomic.LoadInt64(&pageRequests))
	assert.Equal(t, maxPageRequests, result.DocumentsProcessed)
}

func TestConnectProbeFailure(t *testing.T) {
	conn := newTestConnector(t, "http://127.0.0.1:1", nil)

	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeConnection, errors.CodeOf(err))
	assert.Equal(t, core.StateDisconnected, conn.State())
}

func TestHealthCheckReportsNotRaises(t *testing.T) {
	conn := newTestConnector(t, "http://127.0.0.1:1", nil)

	health := conn.HealthCheck(context.Background())
	require.NotNil(t, health)
	assert.False(t, health.IsHealthy)
	assert.NotEmpty(t, health.LastError)
	assert.False(t, health.LastCheck.IsZero())

	// Health checks never touch connection state or query metrics.
	assert.Equal(t, core.StateDisconnected, conn.State())
	assert.Equal(t, int64(0), conn.Metrics().TotalQueries)
}

func TestHealthCheckHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	conn := newTestConnector(t, srv.URL, nil)
	health := conn.HealthCheck(context.Background())
	assert.True(t, health.IsHealthy)
	assert.Empty(t, health.LastError)
	assert.Greater(t, health.ResponseTime, time.Duration(0))
}

func TestDisconnectIdempotent(t *testing.T) {
	conn := newTestConnector(t, "http://127.0.0.1:1", nil)
	require.NoError(t, conn.Disconnect(context.Background()))
	require.NoError(t, conn.Disconnect(context.Background()))
	assert.Equal(t, core.StateDisconnected, conn.State())
}

func TestNewConnectorRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewDataSourceConfig("not-a-url")
	_, err := NewConnector(&core.DataSource{
		ID: "bad", Name: "bad", Type: core.SourceTypeAPI, Config: cfg,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}
