package webhook

import (
	"context"
	"sync"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
)

// Delivery is a message captured by a Recorder.
type Delivery struct {
	Mode    ports.Mode
	Flow    domain.FlowName
	Message *domain.OutboundMessage
}

// Recorder is a Sender that keeps messages in memory instead of posting them.
type Recorder struct {
	mu        sync.Mutex
	delivered []Delivery

	// Err, when set, is returned by Send and nothing is recorded.
	Err error

	// OnSend is called for every recorded message.
	OnSend func(Delivery)
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send implements ports.Sender.
func (r *Recorder) Send(ctx context.Context, mode ports.Mode, flow domain.FlowName, msg *domain.OutboundMessage) error {
	r.mu.Lock()
	if r.Err != nil {
		err := r.Err
		r.mu.Unlock()
		return err
	}
	d := Delivery{Mode: mode, Flow: flow, Message: msg}
	r.delivered = append(r.delivered, d)
	hook := r.OnSend
	r.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

// Fail makes subsequent sends return err. Nil restores delivery.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// Deliveries returns a copy of everything sent so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.delivered...)
}

// Last returns the latest message, or nil.
func (r *Recorder) Last() *domain.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.delivered) == 0 {
		return nil
	}
	return r.delivered[len(r.delivered)-1].Message
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = nil
}
