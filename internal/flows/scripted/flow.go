// Package scripted implements the fixed question-and-answer flow that collects
// tank dimensions, quotes capacity and cost, and hands the lead to a human.
package scripted

import (
	"errors"
	"fmt"
	"strings"

	"github.com/appsail/convo/internal/calc"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
)

// DefaultRate is the cost per cubic meter.
const DefaultRate = 10.0

// StateStart is the state of a conversation that has not been asked anything yet.
const StateStart domain.StateID = "start"

// Question is one step of the script. Field names the accumulated_data key the answer is stored under.
type Question struct {
	Field   string `mapstructure:"field"`
	Text    string `mapstructure:"text"`
	Numeric bool   `mapstructure:"numeric"`
}

// DefaultScript is the tank enquiry script. The fourth prompt is a template
// filled from the three dimensions.
var DefaultScript = []Question{
	{Field: "length", Numeric: true, Text: "Hello, welcome to VME. We have precast tanks for your commercial usage. What is the length of the tank (in meters)?"},
	{Field: "width", Numeric: true, Text: "What is the width of the tank (in meters)?"},
	{Field: "height", Numeric: true, Text: "What is the height of the tank (in meters)?"},
	{Field: "connect_expert", Text: "The total capacity of the tank is {capacity} cubic meters. The approximate cost will be around Rs. {amount}. Would you like to connect with our expert to discuss further?"},
	{Text: "Thanks, someone from our team will connect with you shortly."},
}

// ReasonInvalidNumber rejects a dimension that does not parse as a positive number.
const ReasonInvalidNumber runtime.Reason = "invalid_number"

// InvalidNumber prefixes the re-asked question when a dimension does not parse.
const InvalidNumber = "Please enter the measurement as a number."

// Config parameterizes the flow.
type Config struct {
	Rate   float64
	Script []Question
}

// StateFor returns the state awaiting the answer to question i (zero-based).
func StateFor(i int) domain.StateID {
	return domain.StateID(fmt.Sprintf("question_%d", i+1))
}

type flow struct {
	rate   float64
	script []Question
}

// New builds the transition table: start, then one state per question except the last,
// whose text is the terminal hand-off.
func New(cfg Config) (*runtime.Flow, error) {
	f := &flow{rate: cfg.Rate, script: cfg.Script}
	if f.rate <= 0 {
		f.rate = DefaultRate
	}
	if len(f.script) == 0 {
		f.script = DefaultScript
	}
	if len(f.script) < 2 {
		return nil, errors.New("scripted: script needs at least two questions")
	}

	states := map[domain.StateID]*runtime.StateSpec{
		StateStart: {
			Expect:  runtime.ExpectAny,
			Default: func(t *runtime.Turn) (runtime.Decision, error) { return f.ask(t, 0) },
			Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
				return runtime.Text(f.script[0].Text)
			},
		},
	}
	for i := 0; i < len(f.script)-1; i++ {
		i := i
		states[StateFor(i)] = &runtime.StateSpec{
			Expect:  domain.ContentText,
			Default: func(t *runtime.Turn) (runtime.Decision, error) { return f.answer(t, i) },
			Retry:   func(t *runtime.Turn, r runtime.Reason) runtime.Reply { return f.retry(t, i, r) },
		}
	}

	return &runtime.Flow{
		Name:      domain.FlowScripted,
		Initial:   StateStart,
		States:    states,
		Customers: runtime.CustomersNone,
	}, nil
}

// answer stores the reply to question i and asks the next one.
func (f *flow) answer(t *runtime.Turn, i int) (runtime.Decision, error) {
	q := f.script[i]
	text := strings.TrimSpace(t.Message.Text)
	if q.Numeric {
		if _, err := calc.ParseDimension(text); err != nil {
			return runtime.Reject(ReasonInvalidNumber), nil
		}
	}
	if q.Field != "" {
		t.State.Data[q.Field] = text
	}
	return f.ask(t, i+1)
}

// ask renders question i. The last question ends the conversation.
func (f *flow) ask(t *runtime.Turn, i int) (runtime.Decision, error) {
	if i == len(f.script)-1 {
		return runtime.Finish(runtime.Text(f.script[i].Text), f.script[i].Text), nil
	}

	text, err := f.render(t, i)
	var missing *runtime.MissingPlaceholdersError
	if errors.As(err, &missing) {
		// Never send unresolved placeholders: go back to the first unanswered dimension.
		back := f.firstMissing(t)
		if back < 0 || back >= i {
			return runtime.Decision{}, err
		}
		return runtime.Ask(StateFor(back), runtime.Text(f.script[back].Text), f.script[back].Text), nil
	}
	if err != nil {
		return runtime.Decision{}, err
	}
	return runtime.Ask(StateFor(i), runtime.Text(text), text), nil
}

func (f *flow) retry(t *runtime.Turn, i int, _ runtime.Reason) runtime.Reply {
	text, err := f.render(t, i)
	if err != nil {
		text = f.script[i].Text
	}
	if f.script[i].Numeric {
		return runtime.Text(InvalidNumber + "\n\n" + text)
	}
	return runtime.Text(text)
}

// render fills the capacity and amount placeholders of question i.
func (f *flow) render(t *runtime.Turn, i int) (string, error) {
	tpl := f.script[i].Text
	if len(runtime.Placeholders(tpl)) == 0 {
		return tpl, nil
	}

	values := map[string]string{}
	length, _ := t.State.Data["length"].(string)
	width, _ := t.State.Data["width"].(string)
	height, _ := t.State.Data["height"].(string)
	if q, err := calc.Capacity(length, width, height, f.rate); err == nil {
		values["capacity"] = q.CapacityText()
		values["amount"] = q.AmountText()
	}
	return runtime.Render(string(StateFor(i)), tpl, values)
}

// firstMissing returns the index of the first numeric question without a usable answer, or -1.
func (f *flow) firstMissing(t *runtime.Turn) int {
	for i, q := range f.script {
		if !q.Numeric {
			continue
		}
		v, _ := t.State.Data[q.Field].(string)
		if _, err := calc.ParseDimension(v); err != nil {
			return i
		}
	}
	return -1
}
