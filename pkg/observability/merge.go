package observability

import (
	"context"

	"github.com/appsail/convo/pkg/domain"
)

// Merge combines several hook sets into one. Each callback runs the
// corresponding callbacks of every set, in order. Nil callbacks are skipped.
func Merge(sets ...domain.TurnHooks) domain.TurnHooks {
	turn := func(pick func(domain.TurnHooks) func(context.Context, *domain.TurnEvent)) func(context.Context, *domain.TurnEvent) {
		var fns []func(context.Context, *domain.TurnEvent)
		for _, s := range sets {
			if fn := pick(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, ev *domain.TurnEvent) {
			for _, fn := range fns {
				fn(ctx, ev)
			}
		}
	}

	var wallet []func(context.Context, *domain.WalletEvent)
	for _, s := range sets {
		if s.OnWalletChange != nil {
			wallet = append(wallet, s.OnWalletChange)
		}
	}

	merged := domain.TurnHooks{
		OnTurnStart:        turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnTurnStart }),
		OnTransition:       turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnTransition }),
		OnValidationFailed: turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnValidationFailed }),
		OnHandOff:          turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnHandOff }),
		OnTurnError:        turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnTurnError }),
		OnTurnEnd:          turn(func(h domain.TurnHooks) func(context.Context, *domain.TurnEvent) { return h.OnTurnEnd }),
	}
	if len(wallet) > 0 {
		merged.OnWalletChange = func(ctx context.Context, ev *domain.WalletEvent) {
			for _, fn := range wallet {
				fn(ctx, ev)
			}
		}
	}
	return merged
}
