package runtime

import (
	"strings"

	"github.com/appsail/convo/pkg/domain"
)

// Reason explains why an input was rejected.
type Reason string

const (
	ReasonInvalidType      Reason = "invalid_type"
	ReasonMissingSelection Reason = "missing_selection"
	ReasonInvalidSelection Reason = "invalid_selection"
)

// ExpectAny accepts every content type. Used by states that greet whatever arrives.
const ExpectAny domain.ContentType = "*"

// Validation is the verdict on an inbound message.
type Validation struct {
	Valid    bool
	Reason   Reason
	Selected *domain.Option
}

// Validate checks msg against the expected content type and, for selections,
// against the offered options. Labels match case-insensitively after trimming.
func Validate(msg *domain.InboundMessage, expect domain.ContentType, options []domain.Option) Validation {
	if msg == nil {
		return Validation{Reason: ReasonInvalidType}
	}
	if expect == ExpectAny {
		return Validation{Valid: true}
	}
	if msg.ContentType != expect {
		return Validation{Reason: ReasonInvalidType}
	}

	if expect != domain.ContentSelection {
		return Validation{Valid: true}
	}

	if msg.Selection == nil {
		return Validation{Reason: ReasonMissingSelection}
	}

	want := strings.ToLower(strings.TrimSpace(msg.Selection.Text))
	for i := range options {
		if strings.ToLower(options[i].Label) == want {
			opt := options[i]
			return Validation{Valid: true, Selected: &opt}
		}
	}
	return Validation{Reason: ReasonInvalidSelection}
}
