// Package base provides the shared infrastructure every Tributary connector
// composes: a retry/timeout executor, a client-side rate limiter, and query
// metrics with an EMA response time.
//
// Connectors hold a Support value rather than embedding a base type; the
// per-source-type implementations stay independent while the cross-cutting
// reliability logic lives in one place.
package base

import (
	"go.uber.org/zap"

	"github.com/tributary-io/tributary/pkg/config"
	"github.com/tributary-io/tributary/pkg/logger"
)

// Support bundles the cross-cutting concerns shared by all connector
// implementations. One Support per connector instance: the rate-limiter
// ledger and metrics are never shared across connectors.
type Support struct {
	Logger  *zap.Logger
	Metrics *Metrics
	Limiter *RateLimiter
	Retry   *Executor
}

// NewSupport creates the support bundle for a connector. The retry attempt
// budget and request rate come from the source configuration; everything
// else uses the default policy.
func NewSupport(sourceName string, cfg *config.DataSourceConfig) *Support {
	log := logger.Get().With(zap.String("connector", sourceName))
	metrics := NewMetrics(sourceName)

	policy := DefaultRetryPolicy()
	perSecond := 0
	if cfg != nil {
		if cfg.RetryAttempts > 0 {
			policy.MaxAttempts = cfg.RetryAttempts
		}
		perSecond = cfg.RequestsPerSecond
	}

	return &Support{
		Logger:  log,
		Metrics: metrics,
		Limiter: NewRateLimiter(sourceName, perSecond),
		Retry:   NewExecutor(policy, metrics, log),
	}
}
