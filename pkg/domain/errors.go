package domain

import "errors"

// ErrConversationNotFound is returned when no state exists for a channel key.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrRecordNotFound is returned when no counterpart record matches a lookup.
var ErrRecordNotFound = errors.New("record not found")

// ErrVersionConflict is returned by a checked write when another turn wrote first.
var ErrVersionConflict = errors.New("conversation state version conflict")

// ErrMalformedPayload is returned when an inbound payload lacks a sender or a message.
var ErrMalformedPayload = errors.New("malformed webhook payload")
