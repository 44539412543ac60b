// Package core defines the connector capability interface and the data
// model shared by every Tributary source type.
//
// Connectors are independent implementations per source type (API, file,
// database) that share retry, rate-limit, and metrics infrastructure by
// composition: each holds a base.Support rather than inheriting from a
// common base type.
package core

import "context"

// Connector fetches documents from one external source and normalizes them
// into Content for the retrieval pipeline.
//
// A connector instance is not safe for concurrent syncs: callers must
// serialize Sync calls on one instance. Independent instances may run
// concurrently since they share no mutable state.
type Connector interface {
	// Source returns the data source this connector serves.
	Source() *DataSource

	// State returns the current connection lifecycle state.
	State() ConnectionState

	// Connect establishes the connection, probing the source with a
	// minimal real request. On probe failure the connector stays
	// disconnected and a CONNECTION_ERROR is returned.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Safe to call when already
	// disconnected.
	Disconnect(ctx context.Context) error

	// ValidateConnection runs the connectivity probe without changing
	// connection state. Single attempt, no retries.
	ValidateConnection(ctx context.Context) error

	// Sync fetches documents from the source, paginating until exhaustion
	// or the safety cap. With incremental set, only items changed since
	// LastSync are requested. LastSync advances only when the returned
	// result has Success == true; a failed sync discards partial progress.
	Sync(ctx context.Context, incremental bool) (*SyncResult, error)

	// GetContent returns the documents collected by the most recent
	// successful Sync. Cleared by a failed sync so callers never observe
	// a partially collected set.
	GetContent() []*Content

	// HealthCheck probes the source once, with no retries and without
	// mutating connection state. Failures are reported in the returned
	// health snapshot, not raised.
	HealthCheck(ctx context.Context) *DataSourceHealth

	// Metrics returns a snapshot of the connector's query metrics.
	Metrics() ConnectorMetrics
}
