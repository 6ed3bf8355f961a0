// Package reminder implements the payment reminder flow: pay now with a
// choice of split amounts, or ask to be reminded later.
package reminder

import (
	"fmt"
	"strings"

	"github.com/appsail/convo/internal/calc"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
)

// States of the reminder flow.
const (
	StateAwaitingAction  domain.StateID = "awaiting_payment_action"
	StateAwaitingTime    domain.StateID = "awaiting_reminder_time"
	StateAwaitingAmount  domain.StateID = "awaiting_payment_amount"
	StateAwaitingPayment domain.StateID = "awaiting_payment"
)

// Option ids.
const (
	OptionPayNow      = "pay_now"
	OptionRemindLater = "remind_later"
	amountPrefix      = "amount_"
)

// Accumulated data keys.
const (
	keyAmountDue = "amount_due"
	keyAmount    = "payment_amount"
	keyRemindIn  = "remind_in"
)

// DefaultAmount is offered when neither the record nor the request carries a due amount.
var DefaultAmount = domain.Units(90)

// DefaultGateway is the payment processor named on order_details requests.
var DefaultGateway = domain.PaymentGateway{Type: "razorpay", Name: "RazorPayTest"}

var (
	actionOptions = []domain.Option{
		{Label: "Pay now", ID: OptionPayNow},
		{Label: "Remind later", ID: OptionRemindLater},
	}
	timeOptions = []domain.Option{
		{Label: "Tomorrow", ID: "remind_tomorrow"},
		{Label: "3 days", ID: "remind_3days"},
		{Label: "5 days", ID: "remind_5days"},
	}
)

const (
	msgInvalidOption     = "Please select valid options"
	msgReminderTime      = "When do you want to be reminded again?"
	msgReminderConfirmed = "Sure, we will remind you."
	msgPaymentSuccess    = "Thanks for your payment."
	msgPaymentFailed     = "Payment failed. Please try again later."
	paymentHeader        = "Payment"
)

func reminderPrompt(due domain.Money) string {
	return fmt.Sprintf("You have a pending payment of ₹%s. What would you like to do?", due.Short())
}

func amountPrompt(due domain.Money) string {
	return fmt.Sprintf("How much would you like to pay? (Total due: ₹%s)", due.Short())
}

func orderDescription(amount domain.Money) string {
	return fmt.Sprintf("Payment for invoice amount ₹%s", amount.Short())
}

// Config parameterizes the flow.
type Config struct {
	DefaultAmount domain.Money
	Gateway       domain.PaymentGateway
}

type flow struct {
	defaultAmount domain.Money
	gateway       domain.PaymentGateway
}

// New builds the reminder transition table.
func New(cfg Config) *runtime.Flow {
	f := &flow{defaultAmount: cfg.DefaultAmount, gateway: cfg.Gateway}
	if f.defaultAmount <= 0 {
		f.defaultAmount = DefaultAmount
	}
	if f.gateway.Type == "" {
		f.gateway = DefaultGateway
	}

	return &runtime.Flow{
		Name:    domain.FlowReminder,
		Initial: StateAwaitingAction,
		Entry: func(msg *domain.InboundMessage) domain.StateID {
			if msg != nil && msg.ContentType == domain.ContentPayment {
				return StateAwaitingPayment
			}
			return ""
		},
		Customers: runtime.CustomersLookup,
		States: map[domain.StateID]*runtime.StateSpec{
			StateAwaitingAction: {
				Expect:         domain.ContentSelection,
				InitialOptions: actionOptions,
				On: map[string]runtime.Handler{
					OptionPayNow:      f.payNow,
					OptionRemindLater: f.remindLater,
				},
				Retry: f.retryAction,
			},
			StateAwaitingTime: {
				Expect:         domain.ContentSelection,
				InitialOptions: timeOptions,
				Default:        f.confirmReminder,
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return invalid(msgReminderTime, offered(t, timeOptions))
				},
			},
			StateAwaitingAmount: {
				Expect:  domain.ContentSelection,
				Default: f.chooseAmount,
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					due := f.due(t)
					return invalid(amountPrompt(due), offered(t, amountOptions(due)))
				},
			},
			StateAwaitingPayment: {
				Expect: domain.ContentPayment,
				On: map[string]runtime.Handler{
					runtime.EventPaymentSuccess: func(t *runtime.Turn) (runtime.Decision, error) {
						return runtime.Finish(runtime.Text(msgPaymentSuccess), `{"type":"payment_success"}`), nil
					},
					runtime.EventPaymentFailed: func(t *runtime.Turn) (runtime.Decision, error) {
						return runtime.Finish(runtime.Text(msgPaymentFailed), `{"type":"payment_failed"}`), nil
					},
				},
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return f.paymentRequest(t, f.chosen(t))
				},
			},
		},
	}
}

func (f *flow) payNow(t *runtime.Turn) (runtime.Decision, error) {
	due := f.due(t)
	t.State.Data[keyAmountDue] = due.String()
	prompt := amountPrompt(due)
	return runtime.Ask(StateAwaitingAmount, runtime.Selection(prompt, amountOptions(due)...), prompt), nil
}

func (f *flow) remindLater(t *runtime.Turn) (runtime.Decision, error) {
	return runtime.Ask(StateAwaitingTime, runtime.Selection(msgReminderTime, timeOptions...), msgReminderTime), nil
}

func (f *flow) confirmReminder(t *runtime.Turn) (runtime.Decision, error) {
	t.State.Data[keyRemindIn] = t.Selected.ID
	return runtime.Finish(runtime.Text(msgReminderConfirmed), msgReminderConfirmed), nil
}

func (f *flow) chooseAmount(t *runtime.Turn) (runtime.Decision, error) {
	amount, err := domain.ParseMoney(strings.TrimPrefix(t.Selected.ID, amountPrefix))
	if err != nil || amount <= 0 {
		return runtime.Reject(runtime.ReasonInvalidSelection), nil
	}
	t.State.Data[keyAmount] = amount.String()
	reply := f.paymentRequest(t, amount)
	return runtime.Ask(StateAwaitingPayment, reply, fmt.Sprintf(`{"type":"order_details","amount":%s}`, amount.String())), nil
}

// retryAction greets a brand-new conversation with the reminder itself.
func (f *flow) retryAction(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
	prompt := reminderPrompt(f.due(t))
	if t.Fresh {
		return runtime.Selection(prompt, actionOptions...)
	}
	return invalid(prompt, offered(t, actionOptions))
}

func (f *flow) paymentRequest(t *runtime.Turn, amount domain.Money) runtime.Reply {
	req := runtime.PaymentRequest{
		Description:     orderDescription(amount),
		Header:          paymentHeader,
		ProductName:     fmt.Sprintf("Payment ₹%s", amount.Short()),
		Amount:          amount,
		Gateway:         f.gateway,
		ReferencePrefix: "payment",
	}
	if t.Customer != nil {
		req.ReferenceID = t.Customer.ReferenceID
	}
	return runtime.Payment(req)
}

// due resolves the outstanding amount: record, then request parameter, then the default.
func (f *flow) due(t *runtime.Turn) domain.Money {
	if s, ok := t.State.Data[keyAmountDue].(string); ok {
		if m, err := domain.ParseMoney(s); err == nil && m > 0 {
			return m
		}
	}
	if t.Customer != nil && t.Customer.AmountDue > 0 {
		return t.Customer.AmountDue
	}
	if t.Params.Amount > 0 {
		return t.Params.Amount
	}
	return f.defaultAmount
}

func (f *flow) chosen(t *runtime.Turn) domain.Money {
	if s, ok := t.State.Data[keyAmount].(string); ok {
		if m, err := domain.ParseMoney(s); err == nil && m > 0 {
			return m
		}
	}
	return f.due(t)
}

func amountOptions(due domain.Money) []domain.Option {
	amounts := calc.SplitAmounts(due)
	opts := make([]domain.Option, 0, len(amounts))
	seen := make(map[domain.Money]bool, len(amounts))
	for _, a := range amounts {
		if a <= 0 || seen[a] {
			continue
		}
		seen[a] = true
		opts = append(opts, domain.Option{Label: "Rs. " + a.Short(), ID: amountPrefix + a.Short()})
	}
	return opts
}

// offered re-offers what was last sent, falling back to the state's own options.
func offered(t *runtime.Turn, fallback []domain.Option) []domain.Option {
	if len(t.State.LastOptions) > 0 {
		return t.State.LastOptions
	}
	return fallback
}

func invalid(prompt string, opts []domain.Option) runtime.Reply {
	return runtime.Selection(msgInvalidOption+"\n\n"+prompt, opts...)
}
