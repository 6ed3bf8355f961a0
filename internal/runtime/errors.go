package runtime

import (
	"errors"
	"fmt"

	"github.com/appsail/convo/pkg/domain"
)

// ErrUnknownFlow is returned when a turn names a flow the engine was not built with.
var ErrUnknownFlow = errors.New("unknown flow")

// TransitionError is returned when a valid input has no handler in the current state.
type TransitionError struct {
	Flow  domain.FlowName
	State domain.StateID
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("flow %s: state %q has no transition for %q", e.Flow, e.State, e.Event)
}
