package runtime

import (
	"github.com/appsail/convo/pkg/domain"
	"github.com/google/uuid"
)

// Reply is what a handler wants to say, before addressing and hand-off marking.
type Reply struct {
	Kind    domain.ContentType
	Text    string
	Options []domain.Option
	Footer  string
	Payment *PaymentRequest
	Catalog *domain.Catalog
}

// PaymentRequest describes an order_details message.
type PaymentRequest struct {
	Description string
	Header      string
	ProductName string
	Amount      domain.Money
	Gateway     domain.PaymentGateway

	// ReferenceID is used verbatim when set; otherwise ReferencePrefix plus a fresh id.
	ReferenceID     string
	ReferencePrefix string
}

// Text is a plain text reply.
func Text(text string) Reply {
	return Reply{Kind: domain.ContentText, Text: text}
}

// Selection is a caption with buttons.
func Selection(caption string, options ...domain.Option) Reply {
	return Reply{Kind: domain.ContentSelectionRequest, Text: caption, Options: options}
}

// Payment is an order_details reply.
func Payment(req PaymentRequest) Reply {
	return Reply{Kind: domain.ContentOrderDetails, Payment: &req}
}

// CatalogReply is a catalog reply.
func CatalogReply(c domain.Catalog) Reply {
	return Reply{Kind: domain.ContentCatalog, Catalog: &c}
}

// Builder renders replies into outbound messages.
type Builder struct {
	newID func() string
}

// NewBuilder creates a Builder. A nil id source defaults to random UUIDs.
func NewBuilder(newID func() string) *Builder {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Builder{newID: newID}
}

// Build addresses r to to. The hand-off marker is attached iff terminal.
func (b *Builder) Build(to string, r Reply, terminal bool) *domain.OutboundMessage {
	msg := &domain.OutboundMessage{To: to, ContentType: r.Kind}

	switch r.Kind {
	case domain.ContentSelectionRequest:
		msg.SelectionRequest = &domain.SelectionRequest{
			Caption: r.Text,
			Buttons: append([]domain.Option(nil), r.Options...),
			Footer:  r.Footer,
		}
	case domain.ContentOrderDetails:
		msg.OrderDetails = b.orderDetails(r.Payment)
	case domain.ContentCatalog:
		c := *r.Catalog
		msg.Catalog = &c
	default:
		msg.ContentType = domain.ContentText
		msg.Text = r.Text
	}

	if terminal {
		msg.ConversationState = domain.Completed()
	}
	return msg
}

func (b *Builder) orderDetails(p *PaymentRequest) *domain.OrderDetails {
	ref := p.ReferenceID
	if ref == "" {
		prefix := p.ReferencePrefix
		if prefix == "" {
			prefix = "payment"
		}
		ref = prefix + "_" + b.newID()
	}
	return &domain.OrderDetails{
		Text:           p.Description,
		Header:         p.Header,
		ReferenceID:    ref,
		PaymentGateway: p.Gateway,
		TotalAmount:    p.Amount,
		Products: []domain.LineItem{
			{Name: p.ProductName, Amount: p.Amount, Quantity: 1},
		},
		Subtotal: p.Amount,
	}
}
