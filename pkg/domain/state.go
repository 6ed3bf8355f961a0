package domain

import "time"

// FlowName identifies a conversation variant.
type FlowName string

const (
	FlowScripted FlowName = "scripted"
	FlowReminder FlowName = "reminder"
	FlowWallet   FlowName = "wallet"
)

// StateID names a state of a flow's transition table.
type StateID string

// Origin tells who produced a history entry.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAgent Origin = "agent"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
}

// ErrorEntry records a failed turn.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin"`
	State     StateID   `json:"state,omitempty"`
	Reason    string    `json:"reason"`
}

// ConversationState is the durable snapshot of one conversation.
// It is the only thing that survives between two webhook calls.
type ConversationState struct {
	Key             string         `json:"key"`
	Flow            FlowName       `json:"flow"`
	CurrentState    StateID        `json:"current_state"`
	LastMessageType ContentType    `json:"last_message_type,omitempty"`
	LastOptions     []Option       `json:"last_options,omitempty"`
	Data            map[string]any `json:"accumulated_data,omitempty"`
	PendingOrder    *Order         `json:"pending_order,omitempty"`
	History         []Turn         `json:"conversation_history"`
	Errors          []ErrorEntry   `json:"errors,omitempty"`

	// Version is the write stamp the state was loaded at. Stores bump it on Put.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ExpiresAt is reported by the store on Get. Zero means no expiry.
	ExpiresAt time.Time `json:"-"`
}

// NewConversationState creates a fresh state for key positioned at initial.
func NewConversationState(key string, flow FlowName, initial StateID) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		Key:          key,
		Flow:         flow,
		CurrentState: initial,
		Data:         make(map[string]any),
		History:      []Turn{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsNew reports whether the state has never been written.
func (s *ConversationState) IsNew() bool {
	return s.Version == 0
}

// Clone returns a copy that shares no mutable memory with s.
// Data values are copied one level deep; flows only store scalars there.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastOptions != nil {
		c.LastOptions = append([]Option(nil), s.LastOptions...)
	}
	c.Data = make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		c.Data[k] = v
	}
	if s.PendingOrder != nil {
		order := *s.PendingOrder
		if s.PendingOrder.Products != nil {
			order.Products = append([]OrderProduct(nil), s.PendingOrder.Products...)
		}
		c.PendingOrder = &order
	}
	c.History = append([]Turn{}, s.History...)
	if s.Errors != nil {
		c.Errors = append([]ErrorEntry(nil), s.Errors...)
	}
	return &c
}

// Log appends a history entry.
func (s *ConversationState) Log(origin Origin, kind, content string) {
	s.History = append(s.History, Turn{
		Timestamp: time.Now().UTC(),
		Origin:    origin,
		Type:      kind,
		Content:   content,
	})
}

// RecordError appends an errors log entry.
func (s *ConversationState) RecordError(reason string) {
	s.Errors = append(s.Errors, ErrorEntry{
		Timestamp: time.Now().UTC(),
		Origin:    OriginAgent,
		State:     s.CurrentState,
		Reason:    reason,
	})
}
