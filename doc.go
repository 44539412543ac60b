// Package tributary syncs documents from external data sources into a
// retrieval pipeline.
//
// A connector establishes a connection to one source, paginates through its
// results under rate and timeout constraints, classifies and recovers from
// failures, and normalizes heterogeneous payloads into a canonical document
// representation. REST APIs, local file trees, and SQL databases are
// supported out of the box.
//
// # Quick Start
//
// Sync one API source:
//
//	import (
//	    "context"
//	    "github.com/tributary-io/tributary/pkg/config"
//	    "github.com/tributary-io/tributary/pkg/connector/core"
//	    "github.com/tributary-io/tributary/pkg/connector/registry"
//
//	    _ "github.com/tributary-io/tributary/pkg/connector/api"
//	)
//
//	cfg := config.NewDataSourceConfig("https://api.example.com/articles")
//	cfg.Auth = config.AuthConfig{Type: config.AuthBearer, Token: "..."}
//	cfg.Pagination.Type = config.PaginationCursor
//
//	source := &core.DataSource{ID: "articles", Name: "articles", Type: core.SourceTypeAPI, Config: cfg}
//	conn, _ := registry.CreateConnector(source)
//
//	result, err := conn.Sync(context.Background(), false)
//	docs := conn.GetContent()
//
// # Key Packages
//
//	pkg/connector/core     - Connector interface and document data model
//	pkg/connector/base     - Shared retry, rate-limit, and metrics infrastructure
//	pkg/connector/api      - REST API source connector
//	pkg/connector/file     - Local filesystem source connector
//	pkg/connector/database - SQL database source connector
//	pkg/clients            - Tuned HTTP client with failure classification
//	internal/ingest        - Sync orchestration across configured sources
//
// Guarantees: a source's LastSync advances only on a fully successful sync,
// failed syncs discard partial progress, non-retryable failures are never
// retried, and a misbehaving API cannot draw more than the pagination safety
// cap of requests in one sync.
package tributary
