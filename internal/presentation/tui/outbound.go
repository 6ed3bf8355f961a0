package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/appsail/convo/pkg/domain"
	"github.com/muesli/termenv"
)

// Printer writes conversation turns with terminal colours.
type Printer struct {
	out *termenv.Output
}

// NewPrinter detects the colour profile of w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: termenv.NewOutput(w)}
}

// User prints an inbound message.
func (p *Printer) User(msg *domain.InboundMessage) {
	fmt.Fprintln(p.out, p.out.String("you  › "+Inbound(msg)).Foreground(p.out.Color("#94a3b8")))
}

// Agent prints an outbound message.
func (p *Printer) Agent(msg *domain.OutboundMessage) {
	label := p.out.String("bot  › ").Foreground(p.out.Color("#34d399")).Bold()
	fmt.Fprintln(p.out, label.String()+Outbound(msg))
	if msg.HandOff() {
		fmt.Fprintln(p.out, p.out.String("       [conversation completed]").Faint())
	}
}

// Error prints a failed turn.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.out, p.out.String("error › "+err.Error()).Foreground(p.out.Color("#f87171")))
}

// Inbound summarises a user message on one line.
func Inbound(msg *domain.InboundMessage) string {
	switch msg.ContentType {
	case domain.ContentText:
		return msg.Text
	case domain.ContentSelection:
		if msg.Selection != nil {
			return "[" + msg.Selection.Text + "]"
		}
	case domain.ContentOrder:
		if msg.Order != nil {
			return fmt.Sprintf("order ₹%s", msg.Order.GrandTotal)
		}
	case domain.ContentPayment:
		if msg.Payment.Succeeded() {
			return "payment success"
		}
		return "payment failed"
	}
	return string(msg.ContentType)
}

// Outbound summarises a reply for terminal output.
func Outbound(msg *domain.OutboundMessage) string {
	switch msg.ContentType {
	case domain.ContentSelectionRequest:
		sr := msg.SelectionRequest
		labels := make([]string, len(sr.Buttons))
		for i, o := range sr.Buttons {
			labels[i] = "[" + o.Label + "]"
		}
		return sr.Caption + "\n       " + strings.Join(labels, " ")
	case domain.ContentOrderDetails:
		od := msg.OrderDetails
		return fmt.Sprintf("%s: %s ₹%s (ref %s)", od.Header, od.Text, od.TotalAmount, od.ReferenceID)
	case domain.ContentCatalog:
		return msg.Catalog.Caption + " [catalog]"
	default:
		return msg.Text
	}
}
