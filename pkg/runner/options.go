package runner

import (
	"log/slog"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/session"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithRecords configures the counterpart record store.
// Flows that look up customers fail without one.
func WithRecords(records ports.RecordStore) Option {
	return func(r *Runner) {
		r.records = records
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithHooks registers observability callbacks.
func WithHooks(hooks domain.TurnHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithOptimisticWrites rejects state writes whose loaded version is stale.
func WithOptimisticWrites(enabled bool) Option {
	return func(r *Runner) {
		r.checkVersion = enabled
	}
}

// WithSessionManager serializes turns of the same key inside this process.
func WithSessionManager(m *session.Manager) Option {
	return func(r *Runner) {
		r.sessions = m
	}
}

// WithMaxInputSize overrides the sanitizer size limit.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) {
		r.maxInput = n
	}
}
