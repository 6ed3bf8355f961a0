package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/appsail/convo"
	"github.com/appsail/convo/internal/presentation/tui"
	"github.com/appsail/convo/pkg/adapters/webhook"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/runner"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <input>...",
	Short: "Play turns against a flow without calling the gateway",
	Long: `Runs each input as one webhook turn against the configured stores, printing
the reply instead of delivering it.

Inputs:
  hi                 text message
  @Pay now           button selection by label
  order:5000         catalog order with the given grand total
  payment:success    payment result (success or failed)

With --payload, the turns are read from a JSON file ("-" for stdin) holding one
webhook payload or an array of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _ := cmd.Flags().GetString("flow")
		from, _ := cmd.Flags().GetString("from")
		payloadPath, _ := cmd.Flags().GetString("payload")

		params := domain.TurnParams{}
		params.Org, _ = cmd.Flags().GetString("org")
		params.CatalogID, _ = cmd.Flags().GetString("catalog-id")
		params.CatalogType, _ = cmd.Flags().GetString("catalog-type")
		if raw, _ := cmd.Flags().GetString("amount"); raw != "" {
			amount, err := domain.ParseMoney(raw)
			if err != nil {
				return err
			}
			params.Amount = amount
		}

		var payloads []*domain.WebhookPayload
		if payloadPath != "" {
			loaded, err := readPayloads(cmd.InOrStdin(), payloadPath)
			if err != nil {
				return err
			}
			payloads = loaded
		}
		for _, arg := range args {
			msg, err := parseInput(arg)
			if err != nil {
				return err
			}
			payloads = append(payloads, &domain.WebhookPayload{From: from, Messages: []domain.InboundMessage{msg}})
		}
		if len(payloads) == 0 {
			return fmt.Errorf("nothing to simulate: pass inputs or --payload")
		}

		rec := webhook.NewRecorder()
		app, err := openApp(cmd.Context(), cmd, convo.WithSender(rec))
		if err != nil {
			return err
		}
		defer app.Close()

		p := tui.NewPrinter(cmd.OutOrStdout())
		for _, payload := range payloads {
			if latest := payload.Latest(); latest != nil {
				p.User(latest)
			}
			res, err := app.Runner.HandleTurn(cmd.Context(), runner.Request{
				Flow:    domain.FlowName(flow),
				Payload: payload,
				Params:  params,
				Mode:    ports.ModeLocal,
			})
			if err != nil {
				p.Error(err)
				return err
			}
			if res.Message != nil {
				p.Agent(res.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("flow", "f", string(domain.FlowScripted), "Flow to drive (scripted, reminder, wallet)")
	simulateCmd.Flags().String("from", "+910000000000", "Sender address")
	simulateCmd.Flags().String("payload", "", "JSON file with webhook payloads (- for stdin)")
	simulateCmd.Flags().String("org", "", "Organisation scope for customer records")
	simulateCmd.Flags().String("amount", "", "Amount query parameter for the reminder flow")
	simulateCmd.Flags().String("catalog-id", "", "Catalog id for the wallet flow")
	simulateCmd.Flags().String("catalog-type", "", "Catalog type for the wallet flow (multi or single)")
}

// parseInput turns a command line input into an inbound message.
func parseInput(s string) (domain.InboundMessage, error) {
	switch {
	case strings.HasPrefix(s, "@"):
		return domain.InboundMessage{ContentType: domain.ContentSelection, Selection: &domain.Selection{Text: strings.TrimPrefix(s, "@")}}, nil
	case strings.HasPrefix(s, "order:"):
		total, err := domain.ParseMoney(strings.TrimPrefix(s, "order:"))
		if err != nil {
			return domain.InboundMessage{}, err
		}
		return domain.InboundMessage{ContentType: domain.ContentOrder, Order: &domain.Order{GrandTotal: total}}, nil
	case strings.HasPrefix(s, "payment:"):
		status := strings.TrimPrefix(s, "payment:")
		if status != domain.PaymentStatusSuccess && status != "failed" {
			return domain.InboundMessage{}, fmt.Errorf("unknown payment status %q", status)
		}
		return domain.InboundMessage{ContentType: domain.ContentPayment, Payment: &domain.Payment{Transaction: &domain.Transaction{Status: status}}}, nil
	default:
		return domain.InboundMessage{ContentType: domain.ContentText, Text: s}, nil
	}
}

func readPayloads(stdin io.Reader, path string) ([]*domain.WebhookPayload, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []*domain.WebhookPayload
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decoding payloads: %w", err)
		}
		return list, nil
	}
	var one domain.WebhookPayload
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return []*domain.WebhookPayload{&one}, nil
}
