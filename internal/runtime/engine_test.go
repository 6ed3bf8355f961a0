package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toyFlow domain.FlowName = "toy"

// newToyFlow asks Pay now / Remind later, then waits for a payment.
func newToyFlow() *runtime.Flow {
	return &runtime.Flow{
		Name:    toyFlow,
		Initial: "ask",
		Entry: func(msg *domain.InboundMessage) domain.StateID {
			if msg != nil && msg.ContentType == domain.ContentPayment {
				return "await_payment"
			}
			return ""
		},
		States: map[domain.StateID]*runtime.StateSpec{
			"ask": {
				Expect:         domain.ContentSelection,
				InitialOptions: payOptions,
				On: map[string]runtime.Handler{
					"pay_now": func(t *runtime.Turn) (runtime.Decision, error) {
						t.State.Data["chosen"] = "pay"
						return runtime.Ask("await_payment", runtime.Text("pay please"), "asked payment"), nil
					},
					"remind_later": func(t *runtime.Turn) (runtime.Decision, error) {
						return runtime.Finish(runtime.Text("ok"), "done"), nil
					},
				},
				Retry: func(t *runtime.Turn, reason runtime.Reason) runtime.Reply {
					return runtime.Selection("Please select valid options", payOptions...)
				},
			},
			"await_payment": {
				Expect: domain.ContentPayment,
				On: map[string]runtime.Handler{
					runtime.EventPaymentSuccess: func(t *runtime.Turn) (runtime.Decision, error) {
						return runtime.Finish(runtime.Text("thanks"), "paid").WithEffects(runtime.WalletChange{Old: 0, New: domain.Units(1), Reason: "test"}), nil
					},
					runtime.EventPaymentFailed: func(t *runtime.Turn) (runtime.Decision, error) {
						t.State.Data["mutated"] = true
						return runtime.Reject("payment_failed"), nil
					},
				},
				Retry: func(t *runtime.Turn, reason runtime.Reason) runtime.Reply {
					return runtime.Text("retry " + string(reason))
				},
			},
		},
	}
}

func newEngine(t *testing.T) *runtime.Engine {
	t.Helper()
	e, err := runtime.NewEngine([]*runtime.Flow{newToyFlow()})
	require.NoError(t, err)
	return e
}

func TestEngine_FreshConversation(t *testing.T) {
	e := newEngine(t)

	out, err := e.Step(context.Background(), runtime.Input{Flow: toyFlow, Key: "9190", Message: selection("pay NOW")})
	require.NoError(t, err)

	assert.False(t, out.Retry)
	assert.Equal(t, domain.StateID("ask"), out.From)
	assert.Equal(t, domain.StateID("await_payment"), out.To)
	assert.Equal(t, domain.StateID("await_payment"), out.State.CurrentState)
	assert.Equal(t, "pay", out.State.Data["chosen"])
	assert.Equal(t, domain.ContentText, out.State.LastMessageType)
	assert.Empty(t, out.State.LastOptions)
	assert.Equal(t, "9190", out.Message.To)
	assert.Equal(t, "asked payment", out.Note)
}

func TestEngine_EntryState(t *testing.T) {
	e := newEngine(t)
	msg := &domain.InboundMessage{ContentType: domain.ContentPayment, Payment: &domain.Payment{Transaction: &domain.Transaction{Status: "success"}}}

	out, err := e.Step(context.Background(), runtime.Input{Flow: toyFlow, Key: "k", Message: msg})
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, domain.StateID("await_payment"), out.From)
	assert.True(t, out.Message.HandOff())
	require.Len(t, out.Effects, 1)
	assert.Equal(t, domain.Units(1), out.Effects[0].New)
}

func TestEngine_InvalidInputKeepsState(t *testing.T) {
	e := newEngine(t)
	prior := domain.NewConversationState("k", toyFlow, "ask")
	prior.LastOptions = payOptions
	prior.LastMessageType = domain.ContentSelectionRequest
	prior.Version = 3

	out, err := e.Step(context.Background(), runtime.Input{
		Flow:    toyFlow,
		Key:     "k",
		State:   prior,
		Message: &domain.InboundMessage{ContentType: domain.ContentText, Text: "what?"},
	})
	require.NoError(t, err)

	assert.True(t, out.Retry)
	assert.Equal(t, runtime.ReasonInvalidType, out.Reason)
	assert.Equal(t, domain.StateID("ask"), out.State.CurrentState)
	assert.Equal(t, payOptions, out.State.LastOptions)
	assert.Equal(t, payOptions, out.Message.SelectionRequest.Buttons)
	assert.False(t, out.Message.HandOff())
	assert.Equal(t, int64(3), out.State.Version)
	assert.JSONEq(t, `{"reason":"invalid_type","action":"retry"}`, out.Note)
}

func TestEngine_RejectDiscardsHandlerMutations(t *testing.T) {
	e := newEngine(t)
	prior := domain.NewConversationState("k", toyFlow, "await_payment")

	out, err := e.Step(context.Background(), runtime.Input{
		Flow:    toyFlow,
		Key:     "k",
		State:   prior,
		Message: &domain.InboundMessage{ContentType: domain.ContentPayment, Payment: &domain.Payment{Transaction: &domain.Transaction{Status: "failed"}}},
	})
	require.NoError(t, err)

	assert.True(t, out.Retry)
	assert.Equal(t, runtime.Reason("payment_failed"), out.Reason)
	assert.NotContains(t, out.State.Data, "mutated")
	assert.Equal(t, "retry payment_failed", out.Message.Text)
}

func TestEngine_DoesNotMutateInput(t *testing.T) {
	e := newEngine(t)
	prior := domain.NewConversationState("k", toyFlow, "ask")

	_, err := e.Step(context.Background(), runtime.Input{Flow: toyFlow, Key: "k", State: prior, Message: selection("Pay now")})
	require.NoError(t, err)

	assert.Equal(t, domain.StateID("ask"), prior.CurrentState)
	assert.Empty(t, prior.Data)
}

func TestEngine_UnknownStateRestarts(t *testing.T) {
	e := newEngine(t)
	prior := domain.NewConversationState("k", toyFlow, "gone")

	out, err := e.Step(context.Background(), runtime.Input{Flow: toyFlow, Key: "k", State: prior, Message: selection("Remind later")})
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, domain.StateID("ask"), out.From)
}

func TestEngine_Errors(t *testing.T) {
	e := newEngine(t)

	_, err := e.Step(context.Background(), runtime.Input{Flow: "missing", Key: "k"})
	assert.True(t, errors.Is(err, runtime.ErrUnknownFlow))

	bad := newToyFlow()
	bad.Initial = "nowhere"
	_, err = runtime.NewEngine([]*runtime.Flow{bad})
	assert.Error(t, err)

	_, err = runtime.NewEngine([]*runtime.Flow{newToyFlow(), newToyFlow()})
	assert.Error(t, err)
}

func TestEngine_HandlerError(t *testing.T) {
	f := newToyFlow()
	f.States["ask"].On["pay_now"] = func(t *runtime.Turn) (runtime.Decision, error) {
		return runtime.Decision{}, errors.New("calc failed")
	}
	e, err := runtime.NewEngine([]*runtime.Flow{f})
	require.NoError(t, err)

	_, err = e.Step(context.Background(), runtime.Input{Flow: toyFlow, Key: "k", Message: selection("Pay now")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calc failed")
}
