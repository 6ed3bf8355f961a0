/*
Package observability turns conversation turn events into prometheus metrics
and structured audit logs.

Both are delivered as domain.TurnHooks and combined with Merge before being
handed to the runner.
*/
package observability
