package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/appsail/convo/pkg/domain"
)

const (
	msgInvalidOption   = "Please choose a valid option."
	msgRechargePrompt  = "Please choose the amount to top up your wallet."
	msgPaymentFailed   = "Top up failed. Please try again later."
	msgPaymentFailedOr = "Top up failed. Please try topping up your wallet and placing your order later again."
	msgOrderCancelled  = "Order has been abandoned."
	msgTopUpPrompt     = "Please top up your wallet and place your order again."
	rechargeHeader     = "Wallet Recharge"
)

func mainMenu(store, label string) string {
	return fmt.Sprintf("Hi %s, welcome to %s! How can I help you today?", label, store)
}

func rechargeDescription(total, balance domain.Money) string {
	return fmt.Sprintf("Your order total is ₹%s, but your wallet only has ₹%s. Please recharge your wallet to place the order.", total.Short(), balance.Short())
}

func rechargeProduct(amount domain.Money) string {
	return fmt.Sprintf("Wallet Recharge ₹%s", amount.Short())
}

func topUpStandalone(credited, balance domain.Money) string {
	return fmt.Sprintf("Top up successful! ₹%s has been added to your wallet. Your new balance is ₹%s.", credited.Short(), balance.String())
}

func topUpWithOrder(credited, total, balance domain.Money) string {
	return fmt.Sprintf("Top up successful! ₹%s has been added to your wallet.\n\nYour order has also been confirmed and ₹%s has been debited. Your new wallet balance is ₹%s.\n\nYour order will be delivered shortly.",
		credited.Short(), total.Short(), balance.String())
}

func topUpStillShort(credited domain.Money) string {
	return fmt.Sprintf("Top up successful! ₹%s has been added to your wallet.\n\nHowever, your wallet balance is still insufficient. Please top up your wallet and place your order again.", credited.Short())
}

func orderSuccess(balance domain.Money) string {
	return fmt.Sprintf("Your order is confirmed! It will be delivered to your default address in sometime. Your new wallet balance is ₹%s.", balance.String())
}

func insufficientBalance(wallet, total domain.Money) string {
	return fmt.Sprintf("Your order total is ₹%s, but your wallet only has ₹%s. Please recharge your wallet to place the order again.", total.Short(), wallet.Short())
}

func retryCaption(prompt string) string {
	return msgInvalidOption + "\n\n" + prompt
}

// note renders a history entry for an agent turn as a JSON object.
// kv alternates string keys and values.
func note(kind string, kv ...any) string {
	fields := map[string]any{"type": kind}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf(`{"type":%q}`, kind)
	}
	return string(b)
}
