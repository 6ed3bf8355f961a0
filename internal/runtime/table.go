package runtime

import (
	"fmt"
	"time"

	"github.com/appsail/convo/pkg/domain"
)

// Event keys derived from a valid input when no option was selected.
const (
	EventPaymentSuccess = "payment:success"
	EventPaymentFailed  = "payment:failed"
)

// CustomerPolicy tells the controller how to obtain the counterpart record.
type CustomerPolicy int

const (
	CustomersNone CustomerPolicy = iota
	CustomersLookup
	CustomersLookupOrCreate
)

// Turn is the read-only view a handler reacts to, plus the state clone it may mutate.
type Turn struct {
	Flow         domain.FlowName
	Key          string
	State        *domain.ConversationState
	Message      *domain.InboundMessage
	Selected     *domain.Option
	Customer     *domain.Customer
	Params       domain.TurnParams
	ContactLabel string
	Fresh        bool
	Now          time.Time
}

// Handler computes the reaction to a validated input.
type Handler func(t *Turn) (Decision, error)

// RetryFunc renders the re-prompt for a rejected input.
type RetryFunc func(t *Turn, reason Reason) Reply

// StateSpec is one row of a transition table.
type StateSpec struct {
	// Expect is the content type accepted in this state.
	Expect domain.ContentType

	// InitialOptions validate a selection when nothing has been offered yet.
	InitialOptions []domain.Option

	// On maps an event key (selected option ID or payment outcome) to a handler.
	On map[string]Handler

	// Default handles valid inputs without a matching On entry.
	Default Handler

	Retry RetryFunc
}

// Flow is a transition table plus the policies of one conversation variant.
type Flow struct {
	Name      domain.FlowName
	Initial   domain.StateID
	Entry     func(msg *domain.InboundMessage) domain.StateID
	States    map[domain.StateID]*StateSpec
	Customers CustomerPolicy
}

// Validate checks the table is complete.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("flow has no name")
	}
	if _, ok := f.States[f.Initial]; !ok {
		return fmt.Errorf("flow %s: initial state %q is not declared", f.Name, f.Initial)
	}
	for id, spec := range f.States {
		if spec.Expect == "" {
			return fmt.Errorf("flow %s: state %q expects no content type", f.Name, id)
		}
		if spec.Retry == nil {
			return fmt.Errorf("flow %s: state %q has no retry prompt", f.Name, id)
		}
		if spec.Default == nil && len(spec.On) == 0 {
			return fmt.Errorf("flow %s: state %q has no transitions", f.Name, id)
		}
	}
	return nil
}

// StartState picks the state of a brand-new conversation.
func (f *Flow) StartState(msg *domain.InboundMessage) domain.StateID {
	if f.Entry != nil {
		if id := f.Entry(msg); id != "" {
			if _, ok := f.States[id]; ok {
				return id
			}
		}
	}
	return f.Initial
}

// WalletChange is a balance write requested by a handler.
type WalletChange struct {
	Old    domain.Money
	New    domain.Money
	Reason string
}

// Decision is the pure result of a handler.
type Decision struct {
	Next     domain.StateID
	Reply    Reply
	Options  []domain.Option
	Terminal bool
	Effects  []WalletChange
	Note     string

	// Reject turns the decision into a retry of the current state.
	Reject Reason
}

// Ask moves to next and sends reply. Selection replies become the new LastOptions.
func Ask(next domain.StateID, reply Reply, note string) Decision {
	return Decision{Next: next, Reply: reply, Options: reply.Options, Note: note}
}

// Finish ends the conversation with reply.
func Finish(reply Reply, note string) Decision {
	return Decision{Reply: reply, Terminal: true, Note: note}
}

// Reject asks the engine to re-prompt the current state.
func Reject(reason Reason) Decision {
	return Decision{Reject: reason}
}

// WithEffects attaches wallet writes to d.
func (d Decision) WithEffects(effects ...WalletChange) Decision {
	d.Effects = append(d.Effects, effects...)
	return d
}
