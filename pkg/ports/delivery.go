package ports

import (
	"context"
	"fmt"
	"strings"

	"github.com/appsail/convo/pkg/domain"
)

// Mode is the deployment mode discriminator that selects the delivery target.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
	ModeLocal       Mode = "local"
)

// ParseMode maps a query value to a Mode. Empty means production.
// Use ModeOrDefault for request input, where unknown values are tolerated.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeProduction, nil
	case ModeProduction, ModeDevelopment, ModeLocal:
		return m, nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q", s)
	}
}

// Sender dispatches the outbound message of a turn.
type Sender interface {
	Send(ctx context.Context, mode Mode, flow domain.FlowName, msg *domain.OutboundMessage) error
}

// ModeOrDefault is ParseMode with production standing in for any unknown value.
func ModeOrDefault(s string) Mode {
	m, err := ParseMode(s)
	if err != nil {
		return ModeProduction
	}
	return m
}

// TargetChecker is implemented by senders that can tell, before a turn runs,
// whether a message for flow and mode has anywhere to go.
type TargetChecker interface {
	CheckTarget(flow domain.FlowName, mode Mode) error
}
