package uploads

import "context"

// TransferCallbacks is the set of hooks a PeerClient invokes back into the
// core while an upload is in flight, per §4.5's integration contract table.
// The Scheduler constructs one of these per launch and wires each hook to
// the Queue/Governor/Store calls named in the table.
type TransferCallbacks struct {
	// StateChanged fires on each transition. prev/cur are State flag-sets.
	StateChanged func(ctx context.Context, prev, cur State, tx *Transfer)

	// ProgressUpdated fires on each byte-progress event.
	ProgressUpdated func(ctx context.Context, tx *Transfer)

	// Governor is called before each send chunk and returns a grant no
	// larger than requested.
	Governor func(ctx context.Context, tx *Transfer, requested int64) (int64, error)

	// Reporter is called after each send chunk with what was attempted,
	// what was granted, and what was actually written to the wire.
	Reporter func(ctx context.Context, tx *Transfer, attempted, granted, actual int64)

	// SlotAwaiter is called exactly once, after peer readiness, before the
	// first Governor call. The returned channel closes when a slot is
	// granted or the await is cancelled.
	SlotAwaiter func(ctx context.Context, tx *Transfer) (done <-chan struct{}, outcome func() AwaitOutcome)

	// SlotReleased is called exactly once, as the last callback, after the
	// transfer ends.
	SlotReleased func(ctx context.Context, tx *Transfer)
}

// PeerClient starts an outbound Soulseek upload and drives it to
// completion, invoking TransferCallbacks along the way. The wire protocol
// itself is explicitly out of scope; this interface describes only the
// contract the core consumes.
type PeerClient interface {
	// UploadAsync starts an upload and blocks until it reaches a terminal
	// state, returning the final Transfer snapshot. It must never let a
	// panic escape. If the upload cannot be started at all it returns a nil
	// Transfer and the error; once started, the outcome is recorded in the
	// returned Transfer's State and Exception, and a cancellation or
	// Governor failure is returned as the error as well.
	UploadAsync(ctx context.Context, username, filename, localPath string, callbacks TransferCallbacks) (*Transfer, error)

	// ActiveUploadCount returns the number of uploads this client currently
	// has in flight, consulted by Scheduler.Schedule's global soft cap.
	ActiveUploadCount() int
}
