// Package api implements the REST API source connector: it paginates through
// a JSON endpoint under rate and timeout constraints and normalizes the
// payloads into canonical documents.
package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/clients"
	"github.com/tributary-io/tributary/pkg/connector/base"
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/errors"
	"github.com/tributary-io/tributary/pkg/observability"
)

// Connector syncs documents from a REST API source. Not safe for concurrent
// Sync calls on one instance; independent instances share no state.
type Connector struct {
	source  *core.DataSource
	support *base.Support
	client  *clients.HTTPClient

	state       core.ConnectionState
	lastContent []*core.Content
}

// NewConnector creates an API connector for the source. The source config is
// validated here; validation failures are fatal and never retried.
func NewConnector(source *core.DataSource) (*Connector, error) {
	if source.Config == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "data source has no config")
	}
	if err := source.Config.Validate(); err != nil {
		return nil, err
	}

	support := base.NewSupport(source.Name, source.Config)
	return &Connector{
		source:  source,
		support: support,
		client:  clients.NewHTTPClient(nil, support.Logger),
		state:   core.StateDisconnected,
	}, nil
}

func (c *Connector) Source() *core.DataSource { return c.source }

func (c *Connector) State() core.ConnectionState { return c.state }

func (c *Connector) Metrics() core.ConnectorMetrics { return c.support.Metrics.Snapshot() }

// Connect probes the endpoint with a minimal real request. The probe is a
// single attempt; its failure leaves the connector disconnected and comes
// back as a non-retryable CONNECTION_ERROR.
func (c *Connector) Connect(ctx context.Context) error {
	if c.state == core.StateConnected {
		return nil
	}

	c.state = core.StateConnecting
	if err := c.probe(ctx); err != nil {
		c.state = core.StateDisconnected
		// Rejected credentials keep their classification; they will not
		// self-heal and callers should see AUTH_ERROR, not a generic
		// connection failure.
		if errors.IsCode(err, errors.CodeAuth) {
			return err
		}
		return errors.Wrap(err, errors.CodeConnection, "connectivity probe failed")
	}

	c.state = core.StateConnected
	c.support.Logger.Info("connected to source",
		zap.String("endpoint", c.source.Config.Endpoint))
	return nil
}

// Disconnect releases pooled connections. Safe when already disconnected.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.client.CloseIdleConnections()
	c.state = core.StateDisconnected
	return nil
}

// ValidateConnection runs the connectivity probe without touching state.
func (c *Connector) ValidateConnection(ctx context.Context) error {
	return c.probe(ctx)
}

// probe issues a minimal request against the endpoint: the configured
// request shape with a limit of 1. Single attempt, no retries, no metrics.
func (c *Connector) probe(ctx context.Context) error {
	return c.support.Retry.Once(ctx, c.source.Config.Timeout, func(ctx context.Context) error {
		req := c.buildRequest(map[string]string{c.source.Config.Pagination.LimitParam: "1"})
		return c.client.DoJSON(ctx, req, nil)
	})
}

// HealthCheck probes the source once. Failures are reported in the snapshot,
// never raised, and neither connection state nor metrics are mutated.
func (c *Connector) HealthCheck(ctx context.Context) *core.DataSourceHealth {
	start := time.Now()
	err := c.probe(ctx)

	health := &core.DataSourceHealth{
		IsHealthy:    err == nil,
		ResponseTime: time.Since(start),
		ErrorCount:   c.support.Metrics.Snapshot().FailedQueries,
		LastCheck:    time.Now(),
	}
	if err != nil {
		health.LastError = err.Error()
	}
	return health
}

// GetContent returns the documents from the most recent successful sync.
func (c *Connector) GetContent() []*core.Content {
	return c.lastContent
}

// Sync paginates through the source and collects normalized documents.
// Auto-connects when disconnected. LastSync advances only on success; a
// failed sync discards all partial progress so the next incremental sync
// resumes from the last known-good point.
func (c *Connector) Sync(ctx context.Context, incremental bool) (*core.SyncResult, error) {
	started := time.Now()
	result := &core.SyncResult{StartedAt: started}

	if c.state != core.StateConnected {
		if err := c.Connect(ctx); err != nil {
			return c.failSync(result, started, err)
		}
	}

	since := time.Time{}
	if incremental {
		since = c.source.LastSync
	}

	docs, err := c.fetchAllPages(ctx, since)
	if err != nil {
		return c.failSync(result, started, err)
	}

	result.Success = true
	result.DocumentsProcessed = len(docs)
	if incremental && !c.source.LastSync.IsZero() {
		result.DocumentsUpdated = len(docs)
	} else {
		result.DocumentsAdded = len(docs)
	}
	result.Duration = time.Since(started)

	c.lastContent = docs
	c.source.LastSync = started

	base.SyncsTotal.WithLabelValues(c.source.Name, "success").Inc()
	base.DocumentsSynced.WithLabelValues(c.source.Name).Add(float64(len(docs)))
	c.support.Logger.Info("sync completed",
		zap.Int("documents", len(docs)),
		zap.Bool("incremental", incremental),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (c *Connector) failSync(result *core.SyncResult, started time.Time, err error) (*core.SyncResult, error) {
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	result.Duration = time.Since(started)

	// Partial progress is discarded so callers never observe a half
	// collected document set.
	c.lastContent = nil

	base.SyncsTotal.WithLabelValues(c.source.Name, "failure").Inc()
	c.support.Logger.Error("sync failed", zap.Error(err))
	return result, err
}

// fetchAllPages runs the pagination loop: rate-limiter gate, retry-wrapped
// fetch, normalize, advance state. Pages accumulate in order until the
// source is exhausted or the safety cap trips.
func (c *Connector) fetchAllPages(ctx context.Context, since time.Time) ([]*core.Content, error) {
	var (
		docs  []*core.Content
		state *core.PaginationState
	)

	for requests := 0; ; requests++ {
		if requests >= maxPageRequests {
			c.support.Logger.Warn("pagination safety cap reached, stopping sync",
				zap.Int("requests", requests),
				zap.Int("documents", len(docs)))
			break
		}

		if err := c.support.Limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "rate limiter wait interrupted").WithRetryable(false)
		}

		payload, err := c.fetchPage(ctx, state, since)
		if err != nil {
			return nil, err
		}

		items := extractItems(payload)
		pageDocs := normalizeItems(c.source, items, time.Now(), c.support.Logger)
		docs = append(docs, pageDocs...)

		obj, _ := payload.(map[string]interface{})
		next := nextState(c.source.Config, obj, state, len(items))
		if !next.HasMore {
			break
		}
		state = &next
	}
	return docs, nil
}

// fetchPage issues one page request through the retry executor. Every
// attempt, success or failure, records query metrics.
func (c *Connector) fetchPage(ctx context.Context, state *core.PaginationState, since time.Time) (interface{}, error) {
	ctx, span := observability.Tracer().Start(ctx, "api.fetch_page")
	defer span.End()

	params := buildPageParams(c.source.Config, state, since)
	req := c.buildRequest(params)

	var payload interface{}
	err := c.support.Retry.Execute(ctx, c.source.Config.Timeout, func(ctx context.Context) error {
		payload = nil
		return c.client.DoJSON(ctx, req, &payload)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payload, nil
}

func (c *Connector) buildRequest(params map[string]string) *clients.Request {
	return &clients.Request{
		Method:   c.source.Config.Method,
		Endpoint: c.source.Config.Endpoint,
		Params:   params,
		Headers:  c.source.Config.Headers,
		Auth:     &c.source.Config.Auth,
	}
}
