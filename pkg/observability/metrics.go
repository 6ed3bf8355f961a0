package observability

import (
	"context"
	"log/slog"

	"github.com/appsail/convo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors fed by the turn hooks.
type Metrics struct {
	Turns              *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	HandOffs           *prometheus.CounterVec
	WalletMutations    *prometheus.CounterVec
	TurnDuration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_turns_total",
				Help: "Total number of handled turns by outcome",
			},
			[]string{"flow", "outcome"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_validation_failures_total",
				Help: "Inputs rejected and re-prompted",
			},
			[]string{"flow", "reason"},
		),
		HandOffs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_handoffs_total",
				Help: "Conversations completed with a hand-off",
			},
			[]string{"flow"},
		),
		WalletMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "convo_wallet_mutations_total",
				Help: "Wallet balance writes",
			},
			[]string{"reason"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "convo_turn_duration_seconds",
				Help:    "Duration of a turn from load to dispatch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
	}

	for _, c := range []prometheus.Collector{m.Turns, m.ValidationFailures, m.HandOffs, m.WalletMutations, m.TurnDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns turn hooks recording into m.
func (m *Metrics) Hooks() domain.TurnHooks {
	return domain.TurnHooks{
		OnValidationFailed: func(_ context.Context, e *domain.TurnEvent) {
			m.ValidationFailures.WithLabelValues(string(e.Flow), e.Reason).Inc()
		},
		OnHandOff: func(_ context.Context, e *domain.TurnEvent) {
			m.HandOffs.WithLabelValues(string(e.Flow)).Inc()
		},
		OnWalletChange: func(_ context.Context, e *domain.WalletEvent) {
			m.WalletMutations.WithLabelValues(e.Reason).Inc()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(e.Flow), e.Outcome).Inc()
			m.TurnDuration.WithLabelValues(string(e.Flow)).Observe(e.Elapsed.Seconds())
		},
	}
}

// LogHooks returns turn hooks that write an audit trail to logger.
func LogHooks(logger *slog.Logger) domain.TurnHooks {
	return domain.TurnHooks{
		OnTransition: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "transition", "flow", e.Flow, "key", e.Key, "from", e.From, "to", e.To)
		},
		OnValidationFailed: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "input rejected", "flow", e.Flow, "key", e.Key, "state", e.From, "reason", e.Reason)
		},
		OnHandOff: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "hand_off", "flow", e.Flow, "key", e.Key, "state", e.From)
		},
		OnWalletChange: func(ctx context.Context, e *domain.WalletEvent) {
			logger.InfoContext(ctx, "wallet_change", "flow", e.Flow, "key", e.Key, "old", e.Old, "new", e.New, "reason", e.Reason)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_end", "flow", e.Flow, "key", e.Key, "outcome", e.Outcome, "elapsed", e.Elapsed)
		},
	}
}
