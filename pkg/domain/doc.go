/*
Package domain contains the core data model of the conversation engine.

Every inbound webhook call is an independent turn. The only memory that survives
between turns is the ConversationState persisted in the state store, plus the
Customer record kept in the record store. This package is kept pure and free of
I/O so the engine and the adapters can share it.

# Key Entities

  - WebhookPayload / InboundMessage: what the messaging gateway posts.
  - ConversationState: current state, last offered options, accumulated data,
    pending order, append-only history and errors log.
  - OutboundMessage: the single reply of a turn (text, selection_request,
    order_details or catalog), optionally carrying the hand-off marker.
  - Customer: counterpart record holding the wallet balance.
  - Money: integer minor units used for all amounts.
*/
package domain
