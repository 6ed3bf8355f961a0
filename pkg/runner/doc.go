/*
Package runner implements the per-turn conversation controller.

A turn is one webhook call. The Runner loads the conversation state for the
sender's channel key, resolves the counterpart record, steps the flow engine,
applies wallet changes, appends history, persists (or deletes) the state and
finally dispatches the single outbound message.

# Usage

	r, err := runner.New(engine, store, sender,
		runner.WithRecords(records),
		runner.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	res, err := r.HandleTurn(ctx, runner.Request{
		Flow:    domain.FlowWallet,
		Payload: payload,
		Mode:    ports.ModeProduction,
	})

Writes are last-write-wins unless WithOptimisticWrites is set, in which case a
concurrent turn for the same key fails with domain.ErrVersionConflict and the
caller is expected to redeliver.
*/
package runner
