package domain

import "strings"

// ContentType discriminates inbound and outbound message shapes.
type ContentType string

const (
	// Inbound
	ContentText      ContentType = "text"
	ContentSelection ContentType = "selection"
	ContentOrder     ContentType = "order"
	ContentPayment   ContentType = "payment"

	// Outbound
	ContentSelectionRequest ContentType = "selection_request"
	ContentOrderDetails     ContentType = "order_details"
	ContentCatalog          ContentType = "catalog"
)

// PaymentStatusSuccess is the only transaction status treated as a confirmed payment.
const PaymentStatusSuccess = "success"

// WebhookPayload is the body the messaging gateway posts for every user message.
type WebhookPayload struct {
	From       string           `json:"from"`
	Messages   []InboundMessage `json:"messages"`
	Terminated bool             `json:"terminated,omitempty"`
	Contact    *Contact         `json:"contact,omitempty"`
}

// Contact carries the counterpart's display identity.
type Contact struct {
	Label string `json:"label"`
}

// ChannelKey returns the state key for the payload: the sender address without a leading '+'.
func (p *WebhookPayload) ChannelKey() string {
	return ChannelKey(p.From)
}

// Latest returns the message this turn reacts to, or nil when the payload carries none.
func (p *WebhookPayload) Latest() *InboundMessage {
	if len(p.Messages) == 0 {
		return nil
	}
	return &p.Messages[len(p.Messages)-1]
}

// ContactLabel returns the contact label or an empty string.
func (p *WebhookPayload) ContactLabel() string {
	if p.Contact == nil {
		return ""
	}
	return p.Contact.Label
}

// ChannelKey normalises a channel address into a store key.
func ChannelKey(from string) string {
	return strings.ReplaceAll(strings.TrimSpace(from), "+", "")
}

// InboundMessage is a single user message.
type InboundMessage struct {
	ContentType ContentType `json:"content_type"`
	Text        string      `json:"text,omitempty"`
	Selection   *Selection  `json:"selection,omitempty"`
	Order       *Order      `json:"order,omitempty"`
	Payment     *Payment    `json:"payment,omitempty"`
}

// Selection is a button click.
type Selection struct {
	Text string `json:"text"`
	ID   string `json:"id,omitempty"`
}

// Order is a cart submitted from the catalog.
type Order struct {
	GrandTotal Money          `json:"grand_total"`
	Products   []OrderProduct `json:"products,omitempty"`
}

// OrderProduct is one cart line. Extra attributes are carried verbatim.
type OrderProduct map[string]any

// Payment reports the outcome of an order_details payment request.
type Payment struct {
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Transaction holds the gateway status.
type Transaction struct {
	Status string `json:"status"`
}

// Succeeded reports whether the payment was confirmed.
func (p *Payment) Succeeded() bool {
	return p != nil && p.Transaction != nil && p.Transaction.Status == PaymentStatusSuccess
}

// Option is a button offered to the user.
type Option struct {
	Label string `json:"text"`
	ID    string `json:"id"`
}

// OutboundMessage is the single reply dispatched per turn.
type OutboundMessage struct {
	To                string              `json:"to"`
	ContentType       ContentType         `json:"content_type"`
	Text              string              `json:"text,omitempty"`
	SelectionRequest  *SelectionRequest   `json:"selection_request,omitempty"`
	OrderDetails      *OrderDetails       `json:"order_details,omitempty"`
	Catalog           *Catalog            `json:"catalog,omitempty"`
	ConversationState *ConversationStatus `json:"conversation_state,omitempty"`
}

// HandOff reports whether the message carries the completion marker.
func (m *OutboundMessage) HandOff() bool {
	return m != nil && m.ConversationState != nil && m.ConversationState.HandOff
}

// SelectionRequest is a prompt with buttons.
type SelectionRequest struct {
	Caption string   `json:"caption"`
	Buttons []Option `json:"buttons"`
	Footer  string   `json:"footer,omitempty"`
}

// OrderDetails is a payment request.
type OrderDetails struct {
	Text           string         `json:"text"`
	Header         string         `json:"header"`
	ReferenceID    string         `json:"reference_id"`
	PaymentGateway PaymentGateway `json:"payment_gateway"`
	TotalAmount    Money          `json:"total_amount"`
	Products       []LineItem     `json:"products"`
	Subtotal       Money          `json:"subtotal"`
	Tax            Money          `json:"tax"`
	Shipping       Money          `json:"shipping"`
	Discount       Money          `json:"discount"`
}

// PaymentGateway names the processor configured on the channel.
type PaymentGateway struct {
	Type string `json:"type" mapstructure:"type"`
	Name string `json:"name" mapstructure:"name"`
}

// LineItem is a product line of an order_details request.
type LineItem struct {
	Name     string `json:"name"`
	Amount   Money  `json:"amount"`
	Quantity int    `json:"quantity"`
}

// Catalog is a product catalog message.
type Catalog struct {
	CatalogID   string           `json:"catalog_id,omitempty"`
	Header      string           `json:"header"`
	Caption     string           `json:"caption"`
	Footer      string           `json:"footer"`
	Products    []CatalogSection `json:"products,omitempty"`
	ProductCode string           `json:"product_code,omitempty"`
}

// CatalogSection groups product codes under a heading.
type CatalogSection struct {
	Section      string   `json:"section" mapstructure:"section"`
	ProductCodes []string `json:"product_codes" mapstructure:"product_codes"`
}

// ConversationStatus is the hand-off marker attached to terminal replies.
type ConversationStatus struct {
	Status  string `json:"status"`
	HandOff bool   `json:"hand_off"`
}

// Completed is the marker attached to every terminal reply.
func Completed() *ConversationStatus {
	return &ConversationStatus{Status: "completed", HandOff: true}
}

// TurnParams are the per-request parameters taken from the webhook query string.
type TurnParams struct {
	Org         string
	Amount      Money // zero when not supplied
	CatalogID   string
	CatalogType string // "multi" or "single"
}
