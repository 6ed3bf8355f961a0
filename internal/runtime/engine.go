package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/pkg/domain"
)

// Engine routes one inbound message through a flow's transition table.
// It performs no I/O: the controller loads inputs and persists the outcome.
type Engine struct {
	flows   map[domain.FlowName]*Flow
	builder *Builder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDSource overrides the generator of payment reference suffixes.
func WithIDSource(newID func() string) Option {
	return func(e *Engine) {
		e.builder = NewBuilder(newID)
	}
}

// WithClock overrides the time source handed to handlers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates the flows and builds an engine.
func NewEngine(flows []*Flow, opts ...Option) (*Engine, error) {
	e := &Engine{
		flows:   make(map[domain.FlowName]*Flow, len(flows)),
		builder: NewBuilder(nil),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, f := range flows {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.flows[f.Name]; dup {
			return nil, fmt.Errorf("flow %s registered twice", f.Name)
		}
		e.flows[f.Name] = f
	}
	return e, nil
}

// Flow returns a registered flow.
func (e *Engine) Flow(name domain.FlowName) (*Flow, error) {
	f, ok := e.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return f, nil
}

// Flows lists registered flow names.
func (e *Engine) Flows() []domain.FlowName {
	names := make([]domain.FlowName, 0, len(e.flows))
	for name := range e.flows {
		names = append(names, name)
	}
	return names
}

// Input is everything a turn depends on.
type Input struct {
	Flow         domain.FlowName
	Key          string
	State        *domain.ConversationState // nil starts a new conversation
	Message      *domain.InboundMessage
	Customer     *domain.Customer
	Params       domain.TurnParams
	ContactLabel string
}

// Outcome is the result of a turn, ready to be persisted and dispatched.
type Outcome struct {
	State    *domain.ConversationState
	Message  *domain.OutboundMessage
	From     domain.StateID
	To       domain.StateID
	Terminal bool
	Retry    bool
	Reason   Reason
	Effects  []WalletChange
	Note     string
}

// Step validates the message against the current state and applies the matching transition.
// in.State is never modified.
func (e *Engine) Step(ctx context.Context, in Input) (*Outcome, error) {
	flow, err := e.Flow(in.Flow)
	if err != nil {
		return nil, err
	}

	fresh := in.State == nil
	var base *domain.ConversationState
	if fresh {
		base = domain.NewConversationState(in.Key, flow.Name, flow.StartState(in.Message))
	} else {
		base = in.State.Clone()
	}

	spec, ok := flow.States[base.CurrentState]
	if !ok {
		e.logger.Warn("unknown state, restarting flow", "flow", flow.Name, "key", in.Key, "state", base.CurrentState)
		base.CurrentState = flow.Initial
		base.LastOptions = nil
		spec = flow.States[flow.Initial]
	}

	turn := &Turn{
		Flow:         flow.Name,
		Key:          in.Key,
		State:        base.Clone(),
		Message:      in.Message,
		Customer:     in.Customer.Clone(),
		Params:       in.Params,
		ContactLabel: in.ContactLabel,
		Fresh:        fresh,
		Now:          e.now(),
	}

	offered := base.LastOptions
	if len(offered) == 0 {
		offered = spec.InitialOptions
	}

	v := Validate(in.Message, spec.Expect, offered)
	if !v.Valid {
		turn.State = base
		return e.retry(spec, turn, v.Reason), nil
	}
	turn.Selected = v.Selected

	event := eventKey(in.Message, v.Selected)
	handler := spec.On[event]
	if handler == nil {
		handler = spec.Default
	}
	if handler == nil {
		return nil, &TransitionError{Flow: flow.Name, State: base.CurrentState, Event: event}
	}

	d, err := handler(turn)
	if err != nil {
		return nil, fmt.Errorf("flow %s: state %s: %w", flow.Name, base.CurrentState, err)
	}
	if d.Reject != "" {
		turn.State = base
		return e.retry(spec, turn, d.Reject), nil
	}

	next := turn.State
	from := base.CurrentState
	if !d.Terminal {
		if d.Next == "" {
			d.Next = from
		}
		if _, ok := flow.States[d.Next]; !ok {
			return nil, fmt.Errorf("flow %s: transition to undeclared state %q", flow.Name, d.Next)
		}
		next.CurrentState = d.Next
	} else if d.Next != "" {
		next.CurrentState = d.Next
	}
	next.LastMessageType = d.Reply.Kind
	next.LastOptions = append([]domain.Option(nil), d.Options...)

	e.logger.Debug("transition",
		"flow", flow.Name,
		"key", in.Key,
		"from", from,
		"to", next.CurrentState,
		"event", event,
		"terminal", d.Terminal)

	return &Outcome{
		State:    next,
		Message:  e.builder.Build(in.Key, d.Reply, d.Terminal),
		From:     from,
		To:       next.CurrentState,
		Terminal: d.Terminal,
		Effects:  d.Effects,
		Note:     d.Note,
	}, nil
}

// retry re-prompts the current state. CurrentState never changes on a retry.
func (e *Engine) retry(spec *StateSpec, turn *Turn, reason Reason) *Outcome {
	reply := spec.Retry(turn, reason)
	st := turn.State
	if reply.Kind == domain.ContentSelectionRequest && len(st.LastOptions) == 0 {
		st.LastOptions = append([]domain.Option(nil), reply.Options...)
	}
	if st.LastMessageType == "" {
		st.LastMessageType = reply.Kind
	}

	e.logger.Debug("input rejected", "flow", turn.Flow, "key", turn.Key, "state", st.CurrentState, "reason", reason)

	return &Outcome{
		State:   st,
		Message: e.builder.Build(turn.Key, reply, false),
		From:    st.CurrentState,
		To:      st.CurrentState,
		Retry:   true,
		Reason:  reason,
		Note:    fmt.Sprintf(`{"reason":%q,"action":"retry"}`, reason),
	}
}

func eventKey(msg *domain.InboundMessage, selected *domain.Option) string {
	switch {
	case selected != nil:
		return selected.ID
	case msg.ContentType == domain.ContentPayment:
		if msg.Payment.Succeeded() {
			return EventPaymentSuccess
		}
		return EventPaymentFailed
	default:
		return string(msg.ContentType)
	}
}
