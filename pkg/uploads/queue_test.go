package uploads

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestQueue(users UserService) *Queue {
	q := NewQueue(users)
	q.Reconfigure(QueueConfig{
		GlobalSlots: 10,
		Groups: []GroupSpec{
			{Name: GroupDefault, Priority: 1, Slots: 10, Strategy: FIFO},
			{Name: GroupLeechers, Priority: 2, Slots: 10, Strategy: FIFO},
			{Name: "vip", Priority: 0, Slots: 10, Strategy: FIFO},
		},
	})
	return q
}

func TestQueueSelectNextPrefersHigherPriorityGroup(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("v", "vip")
	q := newTestQueue(users)

	q.Enqueue("normal", "a.mp3")
	q.Enqueue("v", "b.mp3")

	cand, ok := q.SelectNext()
	if !ok {
		t.Fatal("expected a candidate")
	}
	if cand.Username != "v" {
		t.Fatalf("expected the vip group's entry to win, got %q", cand.Username)
	}
}

func TestQueueSelectNextFIFOIsOldestFirst(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "first.mp3")
	q.Enqueue("alice", "second.mp3")

	cand, ok := q.SelectNext()
	if !ok || cand.Filename != "first.mp3" {
		t.Fatalf("expected first.mp3 to win FIFO, got %+v ok=%v", cand, ok)
	}
}

func TestQueueSelectNextSkipsGroupWithNoRoom(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("v", "vip")
	q := newTestQueue(users)
	q.Reconfigure(QueueConfig{
		GlobalSlots: 10,
		Groups: []GroupSpec{
			{Name: GroupDefault, Priority: 1, Slots: 10, Strategy: FIFO},
			{Name: "vip", Priority: 0, Slots: 1, Strategy: FIFO},
		},
	})

	q.Enqueue("v", "a.mp3")
	q.Grant("v", "a.mp3") // fills vip's only slot

	q.Enqueue("normal", "b.mp3")

	cand, ok := q.SelectNext()
	if !ok || cand.Username != "normal" {
		t.Fatalf("expected the full vip group to be skipped, got %+v ok=%v", cand, ok)
	}
}

func TestQueueGroupMembershipReResolvedAtSelectionTime(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")

	// alice starts in Default; a privilege change to vip should be picked
	// up on the very next SelectNext, not just on the next Enqueue.
	users.Assign("alice", "vip")

	q.Enqueue("bob", "b.mp3")

	cand, ok := q.SelectNext()
	if !ok || cand.Username != "alice" {
		t.Fatalf("expected alice's vip membership to take effect immediately, got %+v", cand)
	}
}

func TestQueueGrantAndCompleteSlotAccounting(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")
	q.Grant("alice", "a.mp3")

	snap := q.GroupSnapshot()
	if snap[GroupDefault].UsedSlots != 1 {
		t.Fatalf("expected UsedSlots=1 after Grant, got %d", snap[GroupDefault].UsedSlots)
	}

	q.Complete("alice", "a.mp3")

	snap = q.GroupSnapshot()
	if snap[GroupDefault].UsedSlots != 0 {
		t.Fatalf("expected UsedSlots=0 after Complete, got %d", snap[GroupDefault].UsedSlots)
	}
}

func TestQueueCompleteChargesGroupRecordedAtGrantTime(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")
	q.Grant("alice", "a.mp3") // granted against Default

	// alice's live group changes after the grant.
	users.Assign("alice", "vip")

	q.Complete("alice", "a.mp3")

	snap := q.GroupSnapshot()
	if snap[GroupDefault].UsedSlots != 0 {
		t.Fatalf("expected Complete to decrement Default (the group charged at Grant time), got %d", snap[GroupDefault].UsedSlots)
	}
	if snap["vip"].UsedSlots != 0 {
		t.Fatalf("expected vip's UsedSlots untouched, got %d", snap["vip"].UsedSlots)
	}
}

func TestQueueAwaitStartResolvesOnGrant(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")
	done, outcome := q.AwaitStart("alice", "a.mp3")

	select {
	case <-done:
		t.Fatal("await signal resolved before Grant was called")
	default:
	}

	q.Grant("alice", "a.mp3")

	<-done
	if outcome() != AwaitGranted {
		t.Fatalf("expected AwaitGranted, got %v", outcome())
	}
}

func TestQueueAwaitStartMissingEntryIsCancelled(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	done, outcome := q.AwaitStart("ghost", "nope.mp3")
	<-done
	if outcome() != AwaitCancelled {
		t.Fatalf("expected AwaitCancelled for a never-enqueued entry, got %v", outcome())
	}
}

func TestQueueCancelResolvesAwaitAsCancelled(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")
	done, outcome := q.AwaitStart("alice", "a.mp3")

	if !q.Cancel("alice", "a.mp3") {
		t.Fatal("expected Cancel to find the entry")
	}

	<-done
	if outcome() != AwaitCancelled {
		t.Fatalf("expected AwaitCancelled, got %v", outcome())
	}
	if q.Depth("alice") != 0 {
		t.Fatalf("expected Depth 0 after Cancel, got %d", q.Depth("alice"))
	}
}

func TestQueueEnqueueIsIdempotent(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	q.Enqueue("alice", "a.mp3")
	q.Enqueue("alice", "a.mp3")

	if q.Depth("alice") != 1 {
		t.Fatalf("expected duplicate Enqueue to be a no-op, depth=%d", q.Depth("alice"))
	}
}

func TestQueueRoundRobinPicksAmongDistinctUsers(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("a", GroupLeechers)
	users.Assign("b", GroupLeechers)
	q := newTestQueue(users)

	q.Enqueue("a", "1.mp3")
	q.Enqueue("b", "1.mp3")

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		cand := q.pickRoundRobin([]candidate{
			{Username: "a", Filename: "1.mp3"},
			{Username: "b", Filename: "1.mp3"},
		})
		seen[cand.Username] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected round-robin to eventually pick both users across many draws, saw %v", seen)
	}
}

func TestQueueGroupSnapshotMatchesReconfiguredSpecs(t *testing.T) {
	users := NewStaticUserService()
	q := newTestQueue(users)

	want := map[string]Group{
		GroupPrivileged: {Name: GroupPrivileged, Priority: 0, Slots: 10, Strategy: FIFO},
		GroupDefault:    {Name: GroupDefault, Priority: 1, Slots: 10, Strategy: FIFO},
		GroupLeechers:   {Name: GroupLeechers, Priority: 2, Slots: 10, Strategy: FIFO},
		"vip":           {Name: "vip", Priority: 0, Slots: 10, Strategy: FIFO},
	}

	got := q.GroupSnapshot()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("group snapshot mismatch (-want +got):\n%s", diff)
	}
}
