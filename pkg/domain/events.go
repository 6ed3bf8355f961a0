package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart        EventType = "turn_start"
	EventTransition       EventType = "transition"
	EventValidationFailed EventType = "validation_failed"
	EventHandOff          EventType = "hand_off"
	EventWalletChange     EventType = "wallet_change"
	EventTurnError        EventType = "turn_error"
	EventTurnEnd          EventType = "turn_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Flow      FlowName  `json:"flow"`
	Key       string    `json:"key"`
}

// TurnEvent describes the movement of a conversation within one turn.
type TurnEvent struct {
	EventBase
	From   StateID `json:"from,omitempty"`
	To     StateID `json:"to,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Err    error   `json:"-"`

	// Outcome and Elapsed are set on turn_end events.
	Outcome string        `json:"outcome,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// WalletEvent describes a balance write.
type WalletEvent struct {
	EventBase
	Old    Money  `json:"old"`
	New    Money  `json:"new"`
	Reason string `json:"reason"`
}

// TurnHooks defines callbacks for controller observability. Nil hooks are skipped.
type TurnHooks struct {
	OnTurnStart        func(context.Context, *TurnEvent)
	OnTransition       func(context.Context, *TurnEvent)
	OnValidationFailed func(context.Context, *TurnEvent)
	OnHandOff          func(context.Context, *TurnEvent)
	OnWalletChange     func(context.Context, *WalletEvent)
	OnTurnError        func(context.Context, *TurnEvent)
	OnTurnEnd          func(context.Context, *TurnEvent)
}

// NewTurnEvent stamps a TurnEvent.
func NewTurnEvent(kind EventType, flow FlowName, key string) *TurnEvent {
	return &TurnEvent{EventBase: EventBase{Timestamp: time.Now().UTC(), Type: kind, Flow: flow, Key: key}}
}

// Turn outcomes reported on turn_end events.
const (
	OutcomeAdvanced   = "advanced"
	OutcomeRetry      = "retry"
	OutcomeCompleted  = "completed"
	OutcomeTerminated = "terminated"
	OutcomeError      = "error"
)
