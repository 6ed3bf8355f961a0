package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appsail/convo/internal/logging"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/session"
)

// ErrNoRecordStore is returned when a flow needs customer records and none is configured.
var ErrNoRecordStore = errors.New("flow requires a record store")

// Runner drives one conversation turn per webhook call.
type Runner struct {
	engine  *runtime.Engine
	states  ports.StateStore
	records ports.RecordStore
	sender  ports.Sender

	sessions     *session.Manager
	hooks        domain.TurnHooks
	logger       *slog.Logger
	checkVersion bool
	maxInput     int
}

// New creates a Runner.
func New(engine *runtime.Engine, states ports.StateStore, sender ports.Sender, opts ...Option) (*Runner, error) {
	if engine == nil || states == nil || sender == nil {
		return nil, errors.New("runner: engine, state store and sender are required")
	}
	r := &Runner{
		engine: engine,
		states: states,
		sender: sender,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Request is one inbound webhook call.
type Request struct {
	Flow    domain.FlowName
	Payload *domain.WebhookPayload
	Params  domain.TurnParams
	Mode    ports.Mode
}

// Result describes a completed turn.
type Result struct {
	Key string

	// Message is the dispatched reply. Nil when the channel terminated the conversation.
	Message *domain.OutboundMessage

	// State is the persisted state. Nil when the conversation ended.
	State *domain.ConversationState

	From, To   domain.StateID
	Retry      bool
	Completed  bool
	Terminated bool
}

// HandleTurn processes the latest message of the payload.
func (r *Runner) HandleTurn(ctx context.Context, req Request) (*Result, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedPayload)
	}
	key := req.Payload.ChannelKey()
	if key == "" {
		return nil, fmt.Errorf("%w: missing sender", domain.ErrMalformedPayload)
	}
	if req.Mode == "" {
		req.Mode = ports.ModeProduction
	}

	if r.sessions == nil {
		return r.turn(ctx, key, req)
	}
	var res *Result
	err := r.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		res, err = r.turn(ctx, key, req)
		return err
	})
	return res, err
}

func (r *Runner) turn(ctx context.Context, key string, req Request) (*Result, error) {
	started := time.Now()
	r.fire(ctx, r.hooks.OnTurnStart, domain.NewTurnEvent(domain.EventTurnStart, req.Flow, key))

	res, err := r.process(ctx, key, req)

	end := domain.NewTurnEvent(domain.EventTurnEnd, req.Flow, key)
	end.Elapsed = time.Since(started)
	end.Err = err
	switch {
	case err != nil:
		end.Outcome = domain.OutcomeError
	case res.Terminated:
		end.Outcome = domain.OutcomeTerminated
	case res.Completed:
		end.Outcome = domain.OutcomeCompleted
	case res.Retry:
		end.Outcome = domain.OutcomeRetry
	default:
		end.Outcome = domain.OutcomeAdvanced
	}
	r.fire(ctx, r.hooks.OnTurnEnd, end)
	return res, err
}

func (r *Runner) process(ctx context.Context, key string, req Request) (*Result, error) {
	log := r.logger.With("flow", req.Flow, "key", key)

	if req.Payload.Terminated {
		if err := r.states.Delete(ctx, key); err != nil {
			return nil, r.fail(ctx, req.Flow, key, nil, fmt.Errorf("delete terminated conversation: %w", err))
		}
		log.Info("conversation terminated by channel")
		return &Result{Key: key, Terminated: true}, nil
	}

	latest := req.Payload.Latest()
	if latest == nil {
		return nil, fmt.Errorf("%w: no messages", domain.ErrMalformedPayload)
	}
	msg, err := sanitizeMessage(latest, r.maxInput)
	if err != nil {
		return nil, err
	}

	flow, err := r.engine.Flow(req.Flow)
	if err != nil {
		return nil, err
	}

	if tc, ok := r.sender.(ports.TargetChecker); ok {
		if err := tc.CheckTarget(req.Flow, req.Mode); err != nil {
			return nil, r.fail(ctx, req.Flow, key, nil, fmt.Errorf("send: %w", err))
		}
	}

	prior, err := r.load(ctx, key, req.Flow)
	if err != nil {
		return nil, r.fail(ctx, req.Flow, key, nil, err)
	}

	customer, err := r.customer(ctx, flow.Customers, key, req.Params.Org)
	if err != nil {
		return nil, r.fail(ctx, req.Flow, key, prior, err)
	}

	out, err := r.engine.Step(ctx, runtime.Input{
		Flow:         req.Flow,
		Key:          key,
		State:        prior,
		Message:      msg,
		Customer:     customer,
		Params:       req.Params,
		ContactLabel: req.Payload.ContactLabel(),
	})
	if err != nil {
		return nil, r.fail(ctx, req.Flow, key, prior, err)
	}

	st := out.State
	st.Log(domain.OriginUser, string(msg.ContentType), userContent(msg))
	st.Log(domain.OriginAgent, string(out.Message.ContentType), agentContent(out))

	// The state write claims the turn before any balance moves, so a turn
	// that loses a version race or cannot persist never touches the wallet.
	if !out.Terminal || len(out.Effects) > 0 {
		opts := ports.PutOptions{Renewal: prior != nil, CheckVersion: r.checkVersion}
		if err := r.states.Put(ctx, key, st, opts); err != nil {
			return nil, r.fail(ctx, req.Flow, key, prior, fmt.Errorf("persist state: %w", err))
		}
	}

	if err := r.applyEffects(ctx, req.Flow, key, customer, out.Effects); err != nil {
		return nil, r.fail(ctx, req.Flow, key, r.rewind(ctx, key, prior, st), err)
	}

	if out.Terminal {
		if err := r.states.Delete(ctx, key); err != nil {
			log.Warn("delete completed conversation failed", "err", err)
		}
	}

	if err := r.sender.Send(ctx, req.Mode, req.Flow, out.Message); err != nil {
		persisted := st
		if out.Terminal {
			persisted = nil
		}
		return nil, r.fail(ctx, req.Flow, key, persisted, fmt.Errorf("send: %w", err))
	}

	r.emitTransition(ctx, req.Flow, key, out)

	res := &Result{
		Key:       key,
		Message:   out.Message,
		From:      out.From,
		To:        out.To,
		Retry:     out.Retry,
		Completed: out.Terminal,
	}
	if out.Terminal {
		// Deleting after a successful hand-off send is the authoritative completion point.
		if err := r.states.Delete(ctx, key); err != nil {
			log.Warn("delete after hand-off failed", "err", err)
		}
		log.Info("conversation completed", "state", out.From)
		return res, nil
	}

	res.State = st
	log.Debug("turn handled", "from", out.From, "to", out.To, "retry", out.Retry, "version", st.Version)
	return res, nil
}

// load returns the stored state, or nil for a fresh conversation.
// A state left behind by another flow on the same key is discarded.
func (r *Runner) load(ctx context.Context, key string, flow domain.FlowName) (*domain.ConversationState, error) {
	st, err := r.states.Get(ctx, key)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st.Flow != "" && st.Flow != flow {
		r.logger.Warn("discarding state of another flow", "key", key, "stored_flow", st.Flow, "flow", flow)
		if err := r.states.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("discard foreign state: %w", err)
		}
		return nil, nil
	}
	return st, nil
}

func (r *Runner) customer(ctx context.Context, policy runtime.CustomerPolicy, key, org string) (*domain.Customer, error) {
	if policy == runtime.CustomersNone {
		return nil, nil
	}
	if r.records == nil {
		return nil, ErrNoRecordStore
	}

	c, err := r.records.FindByKey(ctx, key, org)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if policy == runtime.CustomersLookup {
		return nil, nil
	}

	c, err = r.records.Create(ctx, &domain.Customer{Mobile: key, Org: org})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	r.logger.Info("customer created", "key", key, "org", org, "customer_id", c.ID)
	return c, nil
}

// applyEffects writes the wallet changes of a turn as a single update.
// Each change carries the absolute balance, so the last one is the one written.
func (r *Runner) applyEffects(ctx context.Context, flow domain.FlowName, key string, c *domain.Customer, effects []runtime.WalletChange) error {
	if len(effects) == 0 {
		return nil
	}
	if r.records == nil || c == nil {
		return ErrNoRecordStore
	}
	final := effects[len(effects)-1]
	c.Wallet = final.New
	if _, err := r.records.Update(ctx, c); err != nil {
		return fmt.Errorf("update wallet (%s): %w", final.Reason, err)
	}
	for _, e := range effects {
		r.logger.Info("wallet updated", "key", key, "customer_id", c.ID, "reason", e.Reason, "old", e.Old, "new", e.New)
		if r.hooks.OnWalletChange != nil {
			r.hooks.OnWalletChange(ctx, &domain.WalletEvent{
				EventBase: domain.EventBase{Timestamp: time.Now().UTC(), Type: domain.EventWalletChange, Flow: flow, Key: key},
				Old:       e.Old,
				New:       e.New,
				Reason:    e.Reason,
			})
		}
	}
	return nil
}

// rewind undoes a claimed write whose wallet update failed, so the same
// delivery can run again. It returns the state fail should record the error on.
func (r *Runner) rewind(ctx context.Context, key string, prior, claimed *domain.ConversationState) *domain.ConversationState {
	if prior == nil {
		if err := r.states.Delete(ctx, key); err != nil {
			r.logger.Warn("could not discard claimed state", "key", key, "err", err)
		}
		return nil
	}
	back := prior.Clone()
	back.Version = claimed.Version
	return back
}

// fail records err on the last persisted state, persists it best-effort and returns err.
func (r *Runner) fail(ctx context.Context, flow domain.FlowName, key string, persisted *domain.ConversationState, err error) error {
	r.logger.Error("turn failed", "flow", flow, "key", key, "err", err)

	if persisted != nil && !errors.Is(err, domain.ErrVersionConflict) {
		st := persisted.Clone()
		st.RecordError(err.Error())
		if perr := r.states.Put(ctx, key, st, ports.PutOptions{Renewal: true, CheckVersion: r.checkVersion}); perr != nil {
			r.logger.Warn("could not persist error log", "key", key, "err", perr)
		}
	}

	ev := domain.NewTurnEvent(domain.EventTurnError, flow, key)
	ev.Err = err
	if persisted != nil {
		ev.From = persisted.CurrentState
	}
	r.fire(ctx, r.hooks.OnTurnError, ev)
	return err
}

func (r *Runner) emitTransition(ctx context.Context, flow domain.FlowName, key string, out *runtime.Outcome) {
	if out.Retry {
		ev := domain.NewTurnEvent(domain.EventValidationFailed, flow, key)
		ev.From, ev.To, ev.Reason = out.From, out.To, string(out.Reason)
		r.fire(ctx, r.hooks.OnValidationFailed, ev)
		return
	}
	ev := domain.NewTurnEvent(domain.EventTransition, flow, key)
	ev.From, ev.To = out.From, out.To
	r.fire(ctx, r.hooks.OnTransition, ev)

	if out.Message.HandOff() {
		h := domain.NewTurnEvent(domain.EventHandOff, flow, key)
		h.From = out.From
		r.fire(ctx, r.hooks.OnHandOff, h)
	}
}

func (r *Runner) fire(ctx context.Context, hook func(context.Context, *domain.TurnEvent), ev *domain.TurnEvent) {
	if hook != nil {
		hook(ctx, ev)
	}
}

// userContent is the history rendering of an inbound message.
func userContent(msg *domain.InboundMessage) string {
	var v any
	switch msg.ContentType {
	case domain.ContentText:
		return msg.Text
	case domain.ContentSelection:
		v = msg.Selection
	case domain.ContentOrder:
		v = msg.Order
	case domain.ContentPayment:
		v = msg.Payment
	default:
		return msg.Text
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// agentContent is the history rendering of a reply.
func agentContent(out *runtime.Outcome) string {
	if out.Note != "" {
		return out.Note
	}
	m := out.Message
	switch {
	case m.SelectionRequest != nil:
		return m.SelectionRequest.Caption
	case m.OrderDetails != nil:
		return m.OrderDetails.Text
	case m.Catalog != nil:
		return m.Catalog.Caption
	default:
		return m.Text
	}
}
