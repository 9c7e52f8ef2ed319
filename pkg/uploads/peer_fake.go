package uploads

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/slskd/slskd/pkg/uploads/uploaderrors"
)

// chunkSize is the simulated wire chunk size FakePeerClient reads from its
// fake file and pushes through the Governor on each iteration.
const chunkSize = 64 * 1024

// unboundedConnections is used when NewFakePeerClient is given no explicit
// connection ceiling, matching a real Soulseek transport that has no
// protocol-level cap of its own — only the Governor and Queue constrain it.
const unboundedConnections = 1 << 30

// FakePeerClient is a reference PeerClient used by cmd/slskd's demo
// entrypoint and by integration tests in place of the real Soulseek
// transport, which is explicitly out of scope. It "sends" a file of a
// caller-declared size in chunkSize increments, honoring the Governor grant
// sequence and the slot-await rendezvous exactly as a real transport would.
//
// A real peer transport has a connection ceiling independent of anything the
// Queue or Governor know about (socket limits, the remote peer's own
// concurrency). conns models that ceiling so Scheduler.Schedule's global
// overshoot check has something meaningful to observe even when every
// Governor bucket has room.
type FakePeerClient struct {
	active int64
	conns  *semaphore.Weighted
	sizeOf func(username, filename string) (int64, error)
}

// NewFakePeerClient creates a FakePeerClient with no connection ceiling
// beyond what the Governor and Queue already enforce.
func NewFakePeerClient(sizeOf func(username, filename string) (int64, error)) *FakePeerClient {
	return NewFakePeerClientWithCapacity(sizeOf, unboundedConnections)
}

// NewFakePeerClientWithCapacity creates a FakePeerClient that additionally
// refuses to start more than capacity simulated uploads concurrently,
// blocking UploadAsync until a slot frees up or ctx is cancelled.
func NewFakePeerClientWithCapacity(sizeOf func(username, filename string) (int64, error), capacity int64) *FakePeerClient {
	return &FakePeerClient{conns: semaphore.NewWeighted(capacity), sizeOf: sizeOf}
}

func (c *FakePeerClient) ActiveUploadCount() int {
	return int(atomic.LoadInt64(&c.active))
}

func (c *FakePeerClient) UploadAsync(ctx context.Context, username, filename, localPath string, cb TransferCallbacks) (*Transfer, error) {
	if err := c.conns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.conns.Release(1)

	atomic.AddInt64(&c.active, 1)
	defer atomic.AddInt64(&c.active, -1)

	size, err := c.sizeOf(username, filename)
	if err != nil {
		return nil, err
	}

	tx := &Transfer{
		Username:    username,
		Filename:    filename,
		LocalPath:   localPath,
		Size:        size,
		Direction:   DirectionUpload,
		RequestedAt: time.Now(),
		State:       StateRequested,
	}

	transition := func(next State) {
		prev := tx.State
		tx.State = next
		if cb.StateChanged != nil {
			cb.StateChanged(ctx, prev, next, tx)
		}
	}

	transition(tx.State | StateQueued | StateLocally)

	if cb.SlotAwaiter != nil {
		done, outcome := cb.SlotAwaiter(ctx, tx)
		select {
		case <-done:
			if outcome() == AwaitCancelled {
				tx.MarkCompleted(StateCancelled, "")
				if cb.SlotReleased != nil {
					cb.SlotReleased(ctx, tx)
				}
				return tx, nil
			}
		case <-ctx.Done():
			tx.MarkCompleted(StateCancelled, uploaderrors.NewCancelledError(username, filename).Error())
			if cb.SlotReleased != nil {
				cb.SlotReleased(ctx, tx)
			}
			return tx, ctx.Err()
		}
	}

	transition(tx.State | StateInitializing | StateRemotely)
	transition((tx.State &^ StateInitializing) | StateInProgress)

	for tx.BytesTransferred < tx.Size {
		remaining := tx.Size - tx.BytesTransferred
		requested := int64(chunkSize)
		if requested > remaining {
			requested = remaining
		}

		var granted int64
		if cb.Governor != nil {
			granted, err = cb.Governor(ctx, tx, requested)
			if err != nil {
				tx.MarkCompleted(StateCancelled, err.Error())
				if cb.SlotReleased != nil {
					cb.SlotReleased(ctx, tx)
				}
				return tx, err
			}
		} else {
			granted = requested
		}

		actual := granted
		tx.BytesTransferred += actual
		if cb.Reporter != nil {
			cb.Reporter(ctx, tx, requested, granted, actual)
		}
		if cb.ProgressUpdated != nil {
			cb.ProgressUpdated(ctx, tx)
		}

		select {
		case <-ctx.Done():
			tx.MarkCompleted(StateCancelled, uploaderrors.NewCancelledError(username, filename).Error())
			if cb.SlotReleased != nil {
				cb.SlotReleased(ctx, tx)
			}
			return tx, ctx.Err()
		default:
		}
	}

	transition((tx.State &^ StateInProgress) | StateSucceeded)
	tx.MarkCompleted(StateSucceeded, "")

	if cb.SlotReleased != nil {
		cb.SlotReleased(ctx, tx)
	}

	return tx, nil
}
