// Package wallet implements the order and wallet top-up flow. Orders are paid
// from the counterpart's wallet; a short wallet is topped up through a payment
// request before the pending order is settled.
package wallet

import (
	"errors"
	"strings"

	"github.com/appsail/convo/internal/calc"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
)

// States of the wallet flow.
const (
	StateInitial             domain.StateID = "initial"
	StateAwaitingMain        domain.StateID = "awaiting_main_selection"
	StateAwaitingOrder       domain.StateID = "awaiting_order"
	StateAwaitingRecharge    domain.StateID = "awaiting_recharge_amount"
	StateAwaitingPayment     domain.StateID = "awaiting_payment"
	StateAwaitingTopUpChoice domain.StateID = "awaiting_wallet_topup_selection"
)

// Option ids.
const (
	OptionProducts = "top_selling_products"
	OptionTopUp    = "top_up_wallet"
	OptionCancel   = "cancel_order"
	rechargePrefix = "recharge_"
)

// Wallet mutation reasons.
const (
	ReasonTopUp = "wallet_topup"
	ReasonDebit = "order_debit"
)

const keyRechargeUnit = "recharge_unit"

// ReasonInvalidOrder rejects an order without a positive grand total.
const ReasonInvalidOrder runtime.Reason = "invalid_order"

// ErrNoCustomer is returned when a turn that moves money has no counterpart record.
var ErrNoCustomer = errors.New("wallet: no customer record")

// Defaults.
var (
	DefaultRechargeUnits = []domain.Money{domain.Units(1), domain.Units(3), domain.Units(5)}
	DefaultGateway       = domain.PaymentGateway{Type: "razorpay", Name: "RazorPayTest"}
	DefaultCatalog       = CatalogConfig{
		Header:  "Welcome to store",
		Caption: "Check out today's top selling products.",
		Footer:  "Buy now",
		Sections: []domain.CatalogSection{
			{Section: "Dairy", ProductCodes: []string{"paneer-2", "milk-2", "ghee-1"}},
		},
		SingleProduct: "paneer-2",
	}
)

// DefaultMultiplier is how many wallet units one unit of payment buys.
const DefaultMultiplier int64 = 10000

// DefaultStoreName is greeted in the main menu.
const DefaultStoreName = "Akshayakalpa"

// CatalogConfig shapes the catalog message. Sections are sent for multi-product
// catalogs, SingleProduct for single-product ones.
type CatalogConfig struct {
	Header        string                  `mapstructure:"header"`
	Caption       string                  `mapstructure:"caption"`
	Footer        string                  `mapstructure:"footer"`
	Sections      []domain.CatalogSection `mapstructure:"sections"`
	SingleProduct string                  `mapstructure:"single_product"`
}

// Config parameterizes the flow.
type Config struct {
	StoreName     string
	RechargeUnits []domain.Money
	Multiplier    int64
	Gateway       domain.PaymentGateway
	Catalog       CatalogConfig
}

var (
	mainOptions = []domain.Option{
		{Label: "Top Selling Products", ID: OptionProducts},
		{Label: "Top up Wallet", ID: OptionTopUp},
	}
	topUpOptions = []domain.Option{
		{Label: "Top up Wallet", ID: OptionTopUp},
		{Label: "Cancel Order", ID: OptionCancel},
	}
)

type flow struct {
	cfg             Config
	rechargeOptions []domain.Option
}

// New builds the wallet transition table.
func New(cfg Config) *runtime.Flow {
	if cfg.StoreName == "" {
		cfg.StoreName = DefaultStoreName
	}
	if len(cfg.RechargeUnits) == 0 {
		cfg.RechargeUnits = DefaultRechargeUnits
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultMultiplier
	}
	if cfg.Gateway.Type == "" {
		cfg.Gateway = DefaultGateway
	}
	if cfg.Catalog.Header == "" {
		cfg.Catalog = DefaultCatalog
	}

	f := &flow{cfg: cfg}
	for _, unit := range cfg.RechargeUnits {
		f.rechargeOptions = append(f.rechargeOptions, domain.Option{Label: "Rs. " + unit.Short(), ID: rechargePrefix + unit.Short()})
	}

	return &runtime.Flow{
		Name:    domain.FlowWallet,
		Initial: StateInitial,
		Entry: func(msg *domain.InboundMessage) domain.StateID {
			if msg != nil && msg.ContentType == domain.ContentOrder {
				return StateAwaitingOrder
			}
			return ""
		},
		Customers: runtime.CustomersLookupOrCreate,
		States: map[domain.StateID]*runtime.StateSpec{
			StateInitial: {
				Expect:  runtime.ExpectAny,
				Default: f.greet,
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return runtime.Selection(mainMenu(f.cfg.StoreName, t.ContactLabel), mainOptions...)
				},
			},
			StateAwaitingMain: {
				Expect:         domain.ContentSelection,
				InitialOptions: mainOptions,
				On: map[string]runtime.Handler{
					OptionProducts: f.showCatalog,
					OptionTopUp:    f.standaloneTopUp,
				},
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return runtime.Selection(retryCaption(mainMenu(f.cfg.StoreName, t.ContactLabel)), offered(t, mainOptions)...)
				},
			},
			StateAwaitingOrder: {
				Expect:  domain.ContentOrder,
				Default: f.placeOrder,
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return f.catalog(t)
				},
			},
			StateAwaitingRecharge: {
				Expect:  domain.ContentSelection,
				Default: f.chooseRecharge,
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return runtime.Selection(retryCaption(msgRechargePrompt), offered(t, f.rechargeOptions)...)
				},
			},
			StateAwaitingPayment: {
				Expect: domain.ContentPayment,
				On: map[string]runtime.Handler{
					runtime.EventPaymentSuccess: f.paymentSucceeded,
					runtime.EventPaymentFailed:  f.paymentFailed,
				},
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return f.paymentRequest(t, f.unit(t))
				},
			},
			StateAwaitingTopUpChoice: {
				Expect:         domain.ContentSelection,
				InitialOptions: topUpOptions,
				On: map[string]runtime.Handler{
					OptionTopUp:  f.orderTopUp,
					OptionCancel: f.cancelOrder,
				},
				Retry: func(t *runtime.Turn, _ runtime.Reason) runtime.Reply {
					return runtime.Selection(retryCaption(msgTopUpPrompt), offered(t, topUpOptions)...)
				},
			},
		},
	}
}

func (f *flow) greet(t *runtime.Turn) (runtime.Decision, error) {
	return runtime.Ask(StateAwaitingMain, runtime.Selection(mainMenu(f.cfg.StoreName, t.ContactLabel), mainOptions...), "Main menu"), nil
}

func (f *flow) showCatalog(t *runtime.Turn) (runtime.Decision, error) {
	t.State.PendingOrder = nil
	return runtime.Ask(StateAwaitingOrder, f.catalog(t), "Product catalog"), nil
}

func (f *flow) standaloneTopUp(t *runtime.Turn) (runtime.Decision, error) {
	t.State.PendingOrder = nil
	return f.askRecharge(t)
}

func (f *flow) orderTopUp(t *runtime.Turn) (runtime.Decision, error) {
	return f.askRecharge(t)
}

func (f *flow) askRecharge(t *runtime.Turn) (runtime.Decision, error) {
	delete(t.State.Data, keyRechargeUnit)
	return runtime.Ask(StateAwaitingRecharge, runtime.Selection(msgRechargePrompt, f.rechargeOptions...), "Recharge amount selection"), nil
}

func (f *flow) cancelOrder(t *runtime.Turn) (runtime.Decision, error) {
	t.State.PendingOrder = nil
	return runtime.Finish(runtime.Text(msgOrderCancelled), note("order_cancelled")), nil
}

// placeOrder debits the wallet when it covers the order, otherwise parks the order.
func (f *flow) placeOrder(t *runtime.Turn) (runtime.Decision, error) {
	order := t.Message.Order
	if order == nil || order.GrandTotal <= 0 {
		return runtime.Reject(ReasonInvalidOrder), nil
	}
	if t.Customer == nil {
		return runtime.Decision{}, ErrNoCustomer
	}

	balance := t.Customer.Wallet
	if remaining, ok := calc.Settle(balance, order.GrandTotal); ok {
		t.State.PendingOrder = nil
		return runtime.Finish(runtime.Text(orderSuccess(remaining)), note("order_success", "new_balance", remaining)).
			WithEffects(runtime.WalletChange{Old: balance, New: remaining, Reason: ReasonDebit}), nil
	}

	pending := *order
	pending.Products = append([]domain.OrderProduct(nil), order.Products...)
	t.State.PendingOrder = &pending
	reply := runtime.Selection(insufficientBalance(balance, order.GrandTotal), topUpOptions...)
	return runtime.Ask(StateAwaitingTopUpChoice, reply,
		note("insufficient_balance", "wallet", balance, "order_total", order.GrandTotal, "shortfall", calc.Shortfall(balance, order.GrandTotal))), nil
}

func (f *flow) chooseRecharge(t *runtime.Turn) (runtime.Decision, error) {
	unit, err := domain.ParseMoney(strings.TrimPrefix(t.Selected.ID, rechargePrefix))
	if err != nil || unit <= 0 {
		return runtime.Reject(runtime.ReasonInvalidSelection), nil
	}
	t.State.Data[keyRechargeUnit] = unit.String()
	return runtime.Ask(StateAwaitingPayment, f.paymentRequest(t, unit), note("order_details", "amount", unit)), nil
}

// paymentSucceeded credits the top-up to the freshly read balance. A pending
// order is then settled against the new balance.
func (f *flow) paymentSucceeded(t *runtime.Turn) (runtime.Decision, error) {
	if t.Customer == nil {
		return runtime.Decision{}, ErrNoCustomer
	}
	unit := f.unit(t)
	balance := t.Customer.Wallet
	topped := calc.TopUp(balance, unit, f.cfg.Multiplier)
	credited := topped - balance
	topUp := runtime.WalletChange{Old: balance, New: topped, Reason: ReasonTopUp}
	delete(t.State.Data, keyRechargeUnit)

	order := t.State.PendingOrder
	if order == nil {
		return runtime.Finish(runtime.Text(topUpStandalone(credited, topped)), note("payment_success_standalone", "new_balance", topped)).
			WithEffects(topUp), nil
	}

	if remaining, ok := calc.Settle(topped, order.GrandTotal); ok {
		t.State.PendingOrder = nil
		return runtime.Finish(runtime.Text(topUpWithOrder(credited, order.GrandTotal, remaining)), note("payment_success_order", "final_balance", remaining)).
			WithEffects(topUp, runtime.WalletChange{Old: topped, New: remaining, Reason: ReasonDebit}), nil
	}

	reply := runtime.Selection(topUpStillShort(credited), topUpOptions...)
	return runtime.Ask(StateAwaitingTopUpChoice, reply, note("still_insufficient", "new_balance", topped)).WithEffects(topUp), nil
}

func (f *flow) paymentFailed(t *runtime.Turn) (runtime.Decision, error) {
	delete(t.State.Data, keyRechargeUnit)
	if t.State.PendingOrder == nil {
		return runtime.Finish(runtime.Text(msgPaymentFailed), note("payment_failed_standalone")), nil
	}
	return runtime.Ask(StateAwaitingTopUpChoice, runtime.Selection(msgPaymentFailedOr, topUpOptions...), note("payment_failed_order")), nil
}

func (f *flow) paymentRequest(t *runtime.Turn, unit domain.Money) runtime.Reply {
	desc := rechargeProduct(unit)
	if order := t.State.PendingOrder; order != nil && t.Customer != nil {
		desc = rechargeDescription(order.GrandTotal, t.Customer.Wallet)
	}
	return runtime.Payment(runtime.PaymentRequest{
		Description:     desc,
		Header:          rechargeHeader,
		ProductName:     rechargeProduct(unit),
		Amount:          unit,
		Gateway:         f.cfg.Gateway,
		ReferencePrefix: "recharge",
	})
}

// catalog renders the store catalog. The catalog id and shape come from the request.
func (f *flow) catalog(t *runtime.Turn) runtime.Reply {
	c := domain.Catalog{
		Header:  f.cfg.Catalog.Header,
		Caption: f.cfg.Catalog.Caption,
		Footer:  f.cfg.Catalog.Footer,
	}
	if t.Params.CatalogID == "" || t.Params.CatalogType == "" {
		return runtime.CatalogReply(c)
	}
	c.CatalogID = t.Params.CatalogID
	switch t.Params.CatalogType {
	case "multi":
		c.Products = append([]domain.CatalogSection(nil), f.cfg.Catalog.Sections...)
	case "single":
		c.ProductCode = f.cfg.Catalog.SingleProduct
	}
	return runtime.CatalogReply(c)
}

// unit is the recharge chosen for the outstanding payment request.
func (f *flow) unit(t *runtime.Turn) domain.Money {
	if s, ok := t.State.Data[keyRechargeUnit].(string); ok {
		if m, err := domain.ParseMoney(s); err == nil && m > 0 {
			return m
		}
	}
	return f.cfg.RechargeUnits[0]
}

func offered(t *runtime.Turn, fallback []domain.Option) []domain.Option {
	if len(t.State.LastOptions) > 0 {
		return t.State.LastOptions
	}
	return fallback
}
