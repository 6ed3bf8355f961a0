package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	failed := domain.NewTurnEvent(domain.EventValidationFailed, domain.FlowReminder, "k")
	failed.Reason = "invalid_selection"
	hooks.OnValidationFailed(ctx, failed)

	hooks.OnHandOff(ctx, domain.NewTurnEvent(domain.EventHandOff, domain.FlowWallet, "k"))
	hooks.OnWalletChange(ctx, &domain.WalletEvent{Reason: "wallet_topup"})

	end := domain.NewTurnEvent(domain.EventTurnEnd, domain.FlowWallet, "k")
	end.Outcome = domain.OutcomeCompleted
	end.Elapsed = 5 * time.Millisecond
	hooks.OnTurnEnd(ctx, end)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("reminder", "invalid_selection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandOffs.WithLabelValues("wallet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WalletMutations.WithLabelValues("wallet_topup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("wallet", "completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TurnDuration))

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestMerge(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelDebug, "text")

	calls := 0
	counter := domain.TurnHooks{OnHandOff: func(context.Context, *domain.TurnEvent) { calls++ }}
	merged := observability.Merge(observability.LogHooks(logger), counter, domain.TurnHooks{})

	merged.OnHandOff(context.Background(), domain.NewTurnEvent(domain.EventHandOff, domain.FlowScripted, "919"))
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "hand_off")
	assert.Nil(t, merged.OnTurnStart)
	assert.NotNil(t, merged.OnWalletChange)
}
