/*
Package ports defines the driven ports (interfaces) of the conversation engine.

These interfaces decouple the turn controller from concrete backends, so the same
flows run against Redis, DynamoDB or memory for state, SQLite, Postgres or memory
for counterpart records, and an HTTP webhook or a recorder for delivery.

# Key Interfaces

  - StateStore: TTL-bound persistence of ConversationState keyed by channel key.
  - RecordStore: lookup, creation and update of Customer records.
  - Sender: dispatch of the single outbound message of a turn.
*/
package ports
