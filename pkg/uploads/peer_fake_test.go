package uploads

import (
	"context"
	"testing"
	"time"
)

func TestFakePeerClientUploadAsyncSucceeds(t *testing.T) {
	peer := NewFakePeerClient(func(string, string) (int64, error) { return 3 * chunkSize, nil })

	var progressed []int64
	cb := TransferCallbacks{
		ProgressUpdated: func(ctx context.Context, tx *Transfer) {
			progressed = append(progressed, tx.BytesTransferred)
		},
	}

	tx, err := peer.UploadAsync(context.Background(), "alice", "a.mp3", "/tmp/a.mp3", cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.State.Has(StateSucceeded) || !tx.State.Has(StateCompleted) {
		t.Fatalf("expected Completed|Succeeded, got %v", tx.State)
	}
	if len(progressed) != 3 {
		t.Fatalf("expected 3 progress updates for a 3-chunk transfer, got %d", len(progressed))
	}
}

func TestFakePeerClientHonorsSlotAwaitCancellation(t *testing.T) {
	peer := NewFakePeerClient(func(string, string) (int64, error) { return chunkSize, nil })

	cb := TransferCallbacks{
		SlotAwaiter: func(ctx context.Context, tx *Transfer) (<-chan struct{}, func() AwaitOutcome) {
			s := newResolvedSignal(AwaitCancelled)
			return s.Done(), s.Outcome
		},
	}

	tx, err := peer.UploadAsync(context.Background(), "alice", "a.mp3", "/tmp/a.mp3", cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.State.Has(StateCancelled) {
		t.Fatalf("expected Cancelled, got %v", tx.State)
	}
}

func TestFakePeerClientGovernorErrorEndsUpload(t *testing.T) {
	peer := NewFakePeerClient(func(string, string) (int64, error) { return chunkSize, nil })

	cb := TransferCallbacks{
		Governor: func(ctx context.Context, tx *Transfer, requested int64) (int64, error) {
			return 0, context.Canceled
		},
	}

	tx, err := peer.UploadAsync(context.Background(), "alice", "a.mp3", "/tmp/a.mp3", cb)
	if err == nil {
		t.Fatal("expected an error from a failing Governor call")
	}
	if !tx.State.Has(StateCancelled) {
		t.Fatalf("expected Cancelled on governor failure, got %v", tx.State)
	}
}

func TestFakePeerClientActiveUploadCount(t *testing.T) {
	peer := NewFakePeerClient(func(string, string) (int64, error) { return chunkSize, nil })

	started := make(chan struct{})
	release := make(chan struct{})
	cb := TransferCallbacks{
		Governor: func(ctx context.Context, tx *Transfer, requested int64) (int64, error) {
			close(started)
			<-release
			return requested, nil
		},
	}

	go func() { _, _ = peer.UploadAsync(context.Background(), "alice", "a.mp3", "/tmp/a.mp3", cb) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("upload never reached the Governor call")
	}

	if peer.ActiveUploadCount() != 1 {
		t.Fatalf("expected ActiveUploadCount 1 mid-flight, got %d", peer.ActiveUploadCount())
	}
	close(release)
}

func TestFakePeerClientCapacityBlocksBeyondCeiling(t *testing.T) {
	peer := NewFakePeerClientWithCapacity(func(string, string) (int64, error) { return chunkSize, nil }, 1)

	release := make(chan struct{})
	cb := TransferCallbacks{
		Governor: func(ctx context.Context, tx *Transfer, requested int64) (int64, error) {
			<-release
			return requested, nil
		},
	}

	go func() { _, _ = peer.UploadAsync(context.Background(), "alice", "a.mp3", "/tmp/a.mp3", cb) }()

	deadline := time.Now().Add(time.Second)
	for peer.ActiveUploadCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := peer.UploadAsync(ctx, "bob", "b.mp3", "/tmp/b.mp3", cb)
	if err == nil {
		t.Fatal("expected a second upload to block on the connection ceiling and time out")
	}

	close(release)
}
