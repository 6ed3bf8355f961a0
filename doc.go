/*
Package convo runs stateful, single-exchange chat automations behind a
messaging gateway webhook.

Each webhook call carries the latest user message. convo loads the
conversation state for the sender, routes the message through the flow's
transition table, persists the new state and posts exactly one reply back to
the gateway. When a flow completes, the reply carries a hand-off marker and
the state is deleted.

# Flows

  - scripted: a fixed sequence of questions ending in a computed quote.
  - reminder: a payment reminder with split-amount options.
  - wallet: a catalog and prepaid wallet with top-ups and order debits.

# Usage

	cfg, err := config.Load("convo.yaml")
	if err != nil {
		log.Fatal(err)
	}
	app, err := convo.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	http.ListenAndServe(cfg.Server.Addr, app.Handler())

Backends are chosen in the configuration: memory, redis or dynamodb for
conversation state, and memory, sqlite or postgres for customer records.
*/
package convo
