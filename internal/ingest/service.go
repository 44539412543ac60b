// Package ingest orchestrates sync runs across configured sources and hands
// the collected documents to a downstream sink.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/connector/core"
	"github.com/tributary-io/tributary/pkg/connector/registry"
	"github.com/tributary-io/tributary/pkg/errors"
	"github.com/tributary-io/tributary/pkg/logger"
	"github.com/tributary-io/tributary/pkg/observability"
)

// Sink receives the documents collected by a successful sync. The embedding
// and indexing pipeline sits behind this interface.
type Sink interface {
	Publish(ctx context.Context, docs []*core.Content) error
}

// LogSink is the default sink: it logs document counts and drops the
// documents. Used when no downstream pipeline is attached.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, docs []*core.Content) error {
	logger.Get().Info("discarding documents, no sink configured", zap.Int("documents", len(docs)))
	return nil
}

// Service runs syncs for a set of configured sources.
type Service struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a sync orchestrator. A nil sink falls back to LogSink.
func NewService(sink Sink, timeout time.Duration) *Service {
	if sink == nil {
		sink = LogSink{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Service{
		sink:    sink,
		logger:  logger.Get().With(zap.String("component", "ingest")),
		timeout: timeout,
	}
}

// SourceFromSpec builds the DataSource record for one manifest entry.
func SourceFromSpec(spec config.SourceSpec) *core.DataSource {
	cfg := spec.Config
	return &core.DataSource{
		ID:     spec.ID,
		Name:   spec.Name,
		Type:   core.SourceType(spec.Type),
		Config: &cfg,
	}
}

// SyncSource runs one sync for one source: create the connector, sync under
// a deadline, publish the documents, disconnect. The connector is built
// fresh per run; LastSync continuity across runs belongs to the caller who
// owns the DataSource record.
func (s *Service) SyncSource(ctx context.Context, source *core.DataSource, incremental bool) (*core.SyncResult, error) {
	syncID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.SyncIDKey, syncID)
	ctx = context.WithValue(ctx, logger.SourceKey, source.Name)

	ctx, span := observability.Tracer().Start(ctx, "ingest.sync")
	span.SetAttributes(
		attribute.String("sync.id", syncID),
		attribute.String("source.id", source.ID),
		attribute.String("source.type", string(source.Type)),
		attribute.Bool("sync.incremental", incremental),
	)
	defer span.End()

	log := logger.WithContext(ctx)
	log.Info("starting sync", zap.Bool("incremental", incremental))

	conn, err := registry.CreateConnector(source)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := conn.Sync(ctx, incremental)
	if derr := conn.Disconnect(context.WithoutCancel(ctx)); derr != nil {
		s.logger.Warn("disconnect failed", zap.String("source", source.ID), zap.Error(derr))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	if docs := conn.GetContent(); len(docs) > 0 {
		if err := s.sink.Publish(ctx, docs); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, errors.Wrap(err, errors.CodeUnknown, "failed to publish documents")
		}
	}

	span.SetAttributes(attribute.Int("sync.documents", result.DocumentsProcessed))
	return result, nil
}

// SyncAll syncs every source in the manifest sequentially. Failures are
// collected per source; one failing source never blocks the rest.
func (s *Service) SyncAll(ctx context.Context, manifest *config.Manifest, incremental bool) map[string]*core.SyncResult {
	results := make(map[string]*core.SyncResult, len(manifest.Sources))

	for _, spec := range manifest.Sources {
		source := SourceFromSpec(spec)
		result, err := s.SyncSource(ctx, source, incremental)
		if err != nil {
			s.logger.Error("source sync failed",
				zap.String("source", spec.ID), zap.Error(err))
		}
		if result == nil {
			result = &core.SyncResult{Success: false, Errors: []string{err.Error()}}
		}
		results[spec.ID] = result
	}
	return results
}

// CheckAll health-checks every source in the manifest.
func (s *Service) CheckAll(ctx context.Context, manifest *config.Manifest) map[string]*core.DataSourceHealth {
	health := make(map[string]*core.DataSourceHealth, len(manifest.Sources))

	for _, spec := range manifest.Sources {
		source := SourceFromSpec(spec)
		conn, err := registry.CreateConnector(source)
		if err != nil {
			health[spec.ID] = &core.DataSourceHealth{
				IsHealthy: false,
				LastError: err.Error(),
				LastCheck: time.Now(),
			}
			continue
		}
		health[spec.ID] = conn.HealthCheck(ctx)
	}
	return health
}
