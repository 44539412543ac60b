package core

import (
	"time"

	"github.com/tributary-io/tributary/pkg/config"
)

// SourceType identifies the kind of external system a connector talks to.
type SourceType string

const (
	SourceTypeAPI      SourceType = "api"
	SourceTypeFile     SourceType = "file"
	SourceTypeDatabase SourceType = "database"
)

// ConnectionState is the lifecycle state of a connector.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// DataSource is the identity of one configured external source. Immutable
// after construction except LastSync, which advances only when a sync
// completes successfully.
type DataSource struct {
	ID     string                   `json:"id"`
	Name   string                   `json:"name"`
	Type   SourceType               `json:"type"`
	Config *config.DataSourceConfig `json:"config"`

	// LastSync is the resume point for incremental syncs. Zero until the
	// first successful sync.
	LastSync time.Time `json:"last_sync"`
}

// Content is the canonical document representation produced by a connector.
// Embedding and Chunks are populated downstream by the indexing pipeline,
// never by connectors.
type Content struct {
	ID          string                 `json:"id"`
	SourceID    string                 `json:"source_id"`
	Title       string                 `json:"title"`
	Text        string                 `json:"text"`
	Metadata    map[string]interface{} `json:"metadata"`
	LastUpdated time.Time              `json:"last_updated"`
	Version     int                    `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`
	Chunks    []string  `json:"chunks,omitempty"`
}

// SyncResult summarizes one sync call. Immutable once returned.
type SyncResult struct {
	Success            bool          `json:"success"`
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsAdded     int           `json:"documents_added"`
	DocumentsUpdated   int           `json:"documents_updated"`
	DocumentsDeleted   int           `json:"documents_deleted"`
	Errors             []string      `json:"errors,omitempty"`
	Duration           time.Duration `json:"duration"`
	StartedAt          time.Time     `json:"started_at"`
}

// PaginationState is the transient cursor between pages of one sync. It is
// recomputed from each response and never persisted.
type PaginationState struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	NextOffset int    `json:"next_offset,omitempty"`
	NextPage   int    `json:"next_page,omitempty"`
}

// ConnectorMetrics is a snapshot of a connector's running totals. The
// average response time is an exponentially weighted moving average.
type ConnectorMetrics struct {
	TotalQueries      int64         `json:"total_queries"`
	SuccessfulQueries int64         `json:"successful_queries"`
	FailedQueries     int64         `json:"failed_queries"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	LastQueryAt       time.Time     `json:"last_query_at"`
}

// DataSourceHealth is the result of one health check. Produced fresh per
// check and not persisted between checks.
type DataSourceHealth struct {
	IsHealthy    bool          `json:"is_healthy"`
	ResponseTime time.Duration `json:"response_time"`
	ErrorCount   int64         `json:"error_count"`
	LastError    string        `json:"last_error,omitempty"`
	LastCheck    time.Time     `json:"last_check"`
}
