package uploads

import (
	"context"
	"testing"
	"time"
)

func TestGovernorAcquireCapsAtGroupRate(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("alice", GroupLeechers)

	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupLeechers, SpeedLimit: 100},
	}})
	defer g.Close()

	_, n, err := g.Acquire(context.Background(), "alice", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 100 {
		t.Fatalf("expected grant capped at rate 100, got %d", n)
	}
}

func TestGovernorUnknownGroupFallsBackToDefault(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("alice", "SomeUnconfiguredGroup")

	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupDefault, SpeedLimit: 50},
	}})
	defer g.Close()

	_, n, err := g.Acquire(context.Background(), "alice", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 50 {
		t.Fatalf("expected Default bucket's rate 50 applied, got %d", n)
	}
}

func TestGovernorUnlimitedGroupGrantsInFull(t *testing.T) {
	users := NewStaticUserService()
	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupDefault, SpeedLimit: 0},
	}})
	defer g.Close()

	_, n, err := g.Acquire(context.Background(), "anyone", 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1_000_000 {
		t.Fatalf("expected unlimited group to grant requested amount in full, got %d", n)
	}
}

func TestGovernorReturnCreditsOriginalBucketAfterReconfigure(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("alice", GroupLeechers)

	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupLeechers, SpeedLimit: 100},
	}, Hash: 1})
	defer g.Close()

	grant, n, err := g.Acquire(context.Background(), "alice", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 100 {
		t.Fatalf("expected full grant of 100, got %d", n)
	}

	// Reconfigure lands mid-flight, resizing the surviving Leechers bucket
	// in place rather than replacing it.
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupLeechers, SpeedLimit: 10},
	}, Hash: 2})

	// actual < granted: the 60 unused bytes go back to the exact bucket
	// instance captured in the Grant at Acquire time, where Return clamps
	// them to the resized capacity of 10.
	g.Return(grant, 100, 40)

	_, _, available := grant.bucket.Snapshot()
	if available != 10 {
		t.Fatalf("expected the 60 returned bytes clamped to the resized capacity 10, got %d", available)
	}
}

func TestGovernorReconfigureResizesInPlaceForSurvivingGroup(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("alice", GroupLeechers)

	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupLeechers, SpeedLimit: 100},
	}, Hash: 1})
	defer g.Close()

	before := g.buckets[GroupLeechers]

	g.Reconfigure(GovernorOptions{Groups: []GroupRate{
		{Name: GroupLeechers, SpeedLimit: 200},
	}, Hash: 2})

	after := g.buckets[GroupLeechers]
	if before != after {
		t.Fatal("expected the same *TokenBucket instance to survive a rate-only reconfigure")
	}

	capacity, _, _ := after.Snapshot()
	if capacity != 200 {
		t.Fatalf("expected resized capacity 200, got %d", capacity)
	}
}

func TestGovernorReconfigureIsNoopOnUnchangedHash(t *testing.T) {
	users := NewStaticUserService()
	g := NewGovernor(users)
	opts := GovernorOptions{Groups: []GroupRate{{Name: GroupDefault, SpeedLimit: 100}}, Hash: 7}
	g.Reconfigure(opts)
	defer g.Close()

	before := g.buckets[GroupDefault]
	g.Reconfigure(opts)
	after := g.buckets[GroupDefault]

	if before != after {
		t.Fatal("expected Reconfigure to be a no-op when the hash is unchanged")
	}
}

func TestGovernorAcquireRespectsContextCancellation(t *testing.T) {
	users := NewStaticUserService()
	g := NewGovernor(users)
	g.Reconfigure(GovernorOptions{Groups: []GroupRate{{Name: GroupDefault, SpeedLimit: 10}}})
	defer g.Close()

	if _, _, err := g.Acquire(context.Background(), "anyone", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := g.Acquire(ctx, "anyone", 1)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
