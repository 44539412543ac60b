// Package file implements the local filesystem source connector. It walks a
// directory tree, filters by extension, and turns each file into a document.
// JSON files contribute their title and content fields; everything else is
// ingested as raw text.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/connector/base"
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/errors"
)

// defaultExtensions are ingested when the source config names none.
var defaultExtensions = []string{".txt", ".md", ".json"}

// Connector syncs documents from a directory tree. Not safe for concurrent
// Sync calls on one instance.
type Connector struct {
	source  *core.DataSource
	support *base.Support

	root       string
	extensions map[string]bool

	state       core.ConnectionState
	lastContent []*core.Content
}

// NewConnector creates a file connector rooted at the source's path.
func NewConnector(source *core.DataSource) (*Connector, error) {
	if source.Config == nil || source.Config.Path == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "file source requires a path")
	}

	exts := source.Config.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[strings.ToLower(ext)] = true
	}

	return &Connector{
		source:     source,
		support:    base.NewSupport(source.Name, source.Config),
		root:       source.Config.Path,
		extensions: allowed,
		state:      core.StateDisconnected,
	}, nil
}

func (c *Connector) Source() *core.DataSource { return c.source }

func (c *Connector) State() core.ConnectionState { return c.state }

func (c *Connector) Metrics() core.ConnectorMetrics { return c.support.Metrics.Snapshot() }

// Connect verifies the root exists and is readable.
func (c *Connector) Connect(ctx context.Context) error {
	if c.state == core.StateConnected {
		return nil
	}
	c.state = core.StateConnecting

	if err := c.probe(); err != nil {
		c.state = core.StateDisconnected
		return err
	}

	c.state = core.StateConnected
	c.support.Logger.Info("connected to source", zap.String("path", c.root))
	return nil
}

func (c *Connector) Disconnect(ctx context.Context) error {
	c.state = core.StateDisconnected
	return nil
}

func (c *Connector) ValidateConnection(ctx context.Context) error {
	return c.probe()
}

func (c *Connector) probe() error {
	info, err := os.Stat(c.root)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnection, "source path is not accessible")
	}
	if !info.IsDir() {
		return errors.Newf(errors.CodeConnection, "source path %q is not a directory", c.root)
	}
	return nil
}

// HealthCheck stats the root path once. Failures are reported, not raised.
func (c *Connector) HealthCheck(ctx context.Context) *core.DataSourceHealth {
	start := time.Now()
	err := c.probe()

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

// Sync walks the tree and collects one document per matching file. With
// incremental set, only files modified after LastSync are read. LastSync
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

	docs, err := c.collect(ctx, since)
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
		zap.Bool("incremental", incremental))
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

func (c *Connector) collect(ctx context.Context, since time.Time) ([]*core.Content, error) {
	var docs []*core.Content

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrap(err, errors.CodeConnection, "walk failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !c.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.support.Logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !since.IsZero() && !info.ModTime().After(since) {
			return nil
		}

		start := time.Now()
		doc, err := c.readFile(path, info)
		c.support.Metrics.RecordQuery(time.Since(start), err == nil)
		if err != nil {
			// A single bad file never aborts the sync.
			c.support.Logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if doc != nil {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Connector) readFile(path string, info fs.FileInfo) (*core.Content, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnection, "failed to read file")
	}

	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	text := string(raw)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		jsonTitle, jsonText, err := jsonDocument(raw)
		if err != nil {
			return nil, err
		}
		if jsonTitle != "" {
			title = jsonTitle
		}
		text = jsonText
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return &core.Content{
		ID:          fmt.Sprintf("%s:%s", c.source.ID, rel),
		SourceID:    c.source.ID,
		Title:       title,
		Text:        text,
		Metadata: map[string]interface{}{
			"path":        rel,
			"size_bytes":  info.Size(),
			"modified_at": info.ModTime().UTC().Format(time.RFC3339),
			"source_name": c.source.Name,
			"source_type": string(c.source.Type),
		},
		LastUpdated: info.ModTime(),
		Version:     1,
	}, nil
}

// jsonDocument extracts a title and text from a JSON file. Field priority
// matches the API normalizer; a file with neither falls back to its full
// pretty raw form so structured data is still searchable.
func jsonDocument(raw []byte) (title, text string, err error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", "", errors.Wrap(err, errors.CodeParse, "malformed JSON file")
	}

	for _, field := range []string{"title", "name", "subject", "headline"} {
		if v, ok := obj[field].(string); ok && v != "" {
			title = v
			break
		}
	}
	for _, field := range []string{"content", "text", "body", "description", "message"} {
		if v, ok := obj[field].(string); ok && v != "" {
			return title, v, nil
		}
	}
	if title != "" {
		return title, title, nil
	}
	return "", string(raw), nil
}
