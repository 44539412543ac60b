// Package database implements the SQL database source connector. It pages
// through a configured query with LIMIT/OFFSET and maps each row to a
// document. PostgreSQL (via pgx) and MySQL drivers are supported.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/connector/base"
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/errors"
)

// driverAliases maps config driver names to registered sql drivers.
var driverAliases = map[string]string{
	"postgres":   "pgx",
	"postgresql": "pgx",
	"pgx":        "pgx",
	"mysql":      "mysql",
}

// Column priority for extracting document text and title from a row.
var (
	textColumns  = []string{"content", "text", "body", "description", "message"}
	titleColumns = []string{"title", "name", "subject", "headline"}
	idColumns    = []string{"id", "_id", "uuid"}
)

// Connector syncs documents from a SQL query. Not safe for concurrent Sync
// calls on one instance.
type Connector struct {
	source  *core.DataSource
	support *base.Support
	driver  string

	db *sql.DB

	state       core.ConnectionState
	lastContent []*core.Content
}

// NewConnector creates a database connector for the source.
func NewConnector(source *core.DataSource) (*Connector, error) {
	cfg := source.Config
	if cfg == nil || cfg.DSN == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "database source requires a dsn")
	}
	driver, ok := driverAliases[cfg.Driver]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidConfig, "driver %q is not supported (postgres, mysql)", cfg.Driver)
	}
	if cfg.Query == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "database source requires a query")
	}

	return &Connector{
		source:  source,
		support: base.NewSupport(source.Name, cfg),
		driver:  driver,
		state:   core.StateDisconnected,
	}, nil
}

func (c *Connector) Source() *core.DataSource { return c.source }

func (c *Connector) State() core.ConnectionState { return c.state }

func (c *Connector) Metrics() core.ConnectorMetrics { return c.support.Metrics.Snapshot() }

// Connect opens the pool and pings the database.
func (c *Connector) Connect(ctx context.Context) error {
	if c.state == core.StateConnected {
		return nil
	}
	c.state = core.StateConnecting

	db, err := sql.Open(c.driver, c.source.Config.DSN)
	if err != nil {
		c.state = core.StateDisconnected
		return errors.Wrap(err, errors.CodeConnection, "failed to open database")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)

	if err := c.ping(ctx, db); err != nil {
		_ = db.Close()
		c.state = core.StateDisconnected
		return err
	}

	c.db = db
	c.state = core.StateConnected
	c.support.Logger.Info("connected to source", zap.String("driver", c.driver))
	return nil
}

func (c *Connector) ping(ctx context.Context, db *sql.DB) error {
	return c.support.Retry.Once(ctx, c.source.Config.Timeout, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Wrap(err, errors.CodeConnection, "database ping failed")
		}
		return nil
	})
}

// Disconnect closes the pool. Safe when already disconnected.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return errors.Wrap(err, errors.CodeConnection, "failed to close database")
		}
		c.db = nil
	}
	c.state = core.StateDisconnected
	return nil
}

func (c *Connector) ValidateConnection(ctx context.Context) error {
	if c.db == nil {
		db, err := sql.Open(c.driver, c.source.Config.DSN)
		if err != nil {
			return errors.Wrap(err, errors.CodeConnection, "failed to open database")
		}
		defer func() { _ = db.Close() }()
		return c.ping(ctx, db)
	}
	return c.ping(ctx, c.db)
}

// HealthCheck pings once. Failures are reported, not raised.
func (c *Connector) HealthCheck(ctx context.Context) *core.DataSourceHealth {
	start := time.Now()
	err := c.ValidateConnection(ctx)

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

func (c *Connector) GetContent() []*core.Content {
	return c.lastContent
}

// Sync pages through the configured query and maps rows to documents.
// Incremental syncs filter on the configured updated-at column. LastSync
// advances only on success.
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

	docs, err := c.fetchAllBatches(ctx, since)
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
	c.lastContent = nil

	base.SyncsTotal.WithLabelValues(c.source.Name, "failure").Inc()
	c.support.Logger.Error("sync failed", zap.Error(err))
	return result, err
}

// fetchAllBatches pages with LIMIT/OFFSET until a short batch, bounded by
// the same safety cap as the HTTP pagination loop.
func (c *Connector) fetchAllBatches(ctx context.Context, since time.Time) ([]*core.Content, error) {
	const maxBatches = 100
	batchSize := c.source.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var docs []*core.Content
	offset := 0

	for batches := 0; ; batches++ {
		if batches >= maxBatches {
			c.support.Logger.Warn("batch safety cap reached, stopping sync",
				zap.Int("batches", batches),
				zap.Int("documents", len(docs)))
			break
		}

		if err := c.support.Limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "rate limiter wait interrupted").WithRetryable(false)
		}

		rows, err := c.fetchBatch(ctx, since, batchSize, offset)
		if err != nil {
			return nil, err
		}

		for i, row := range rows {
			doc := c.rowDocument(row)
			if doc == nil {
				c.support.Logger.Warn("skipping row with no text or title",
					zap.Int("offset", offset+i))
				continue
			}
			docs = append(docs, doc)
		}

		if len(rows) < batchSize {
			break
		}
		offset += len(rows)
	}
	return docs, nil
}

// fetchBatch runs one page of the query through the retry executor.
func (c *Connector) fetchBatch(ctx context.Context, since time.Time, limit, offset int) ([]map[string]interface{}, error) {
	query, args := c.buildQuery(since, limit, offset)

	var rows []map[string]interface{}
	err := c.support.Retry.Execute(ctx, c.source.Config.Timeout, func(ctx context.Context) error {
		rows = nil
		r, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return classifyQueryError(ctx, err)
		}
		defer func() { _ = r.Close() }()

		rows, err = scanRows(r)
		if err != nil {
			return errors.Wrap(err, errors.CodeParse, "failed to scan rows")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// buildQuery wraps the configured query as a subselect so pagination and the
// incremental filter compose with whatever the query itself does.
func (c *Connector) buildQuery(since time.Time, limit, offset int) (string, []interface{}) {
	cfg := c.source.Config
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("SELECT * FROM (")
	sb.WriteString(cfg.Query)
	sb.WriteString(") AS src")

	if !since.IsZero() && cfg.UpdatedColumn != "" {
		if c.driver == "pgx" {
			sb.WriteString(fmt.Sprintf(" WHERE %s > $1", cfg.UpdatedColumn))
		} else {
			sb.WriteString(fmt.Sprintf(" WHERE %s > ?", cfg.UpdatedColumn))
		}
		args = append(args, since)
	}

	sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	return sb.String(), args
}

func classifyQueryError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeTimeout, "query deadline exceeded")
	}
	return errors.Wrap(err, errors.CodeServer, "query failed")
}

func scanRows(r *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for r.Next() {
		if err := r.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows, r.Err()
}

func (c *Connector) rowDocument(row map[string]interface{}) *core.Content {
	text := firstColumn(row, textColumns)
	title := firstColumn(row, titleColumns)
	if text == "" && title == "" {
		return nil
	}
	if text == "" {
		text = title
	}

	metadata := make(map[string]interface{}, len(row)+2)
	for k, v := range row {
		metadata[k] = v
	}
	metadata["source_name"] = c.source.Name
	metadata["source_type"] = string(c.source.Type)

	lastUpdated := time.Now()
	if cfg := c.source.Config; cfg.UpdatedColumn != "" {
		if ts, ok := row[cfg.UpdatedColumn].(time.Time); ok {
			lastUpdated = ts
		}
	}

	return &core.Content{
		ID:          c.rowID(row),
		SourceID:    c.source.ID,
		Title:       title,
		Text:        text,
		Metadata:    metadata,
		LastUpdated: lastUpdated,
		Version:     1,
	}
}

func (c *Connector) rowID(row map[string]interface{}) string {
	for _, col := range idColumns {
		switch v := row[col].(type) {
		case string:
			if v != "" {
				return v
			}
		case int64:
			return fmt.Sprintf("%d", v)
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return fmt.Sprintf("%s-%d", c.source.ID, time.Now().UnixNano())
}

func firstColumn(row map[string]interface{}, cols []string) string {
	for _, col := range cols {
		if v, ok := row[col].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
