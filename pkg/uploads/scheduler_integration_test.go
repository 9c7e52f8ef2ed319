//go:build integration

package uploads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSchedulerRunDispatchesOnTick exercises the Scheduler's periodic tick
// end-to-end: an entry enqueued after Run has already started must still
// be dispatched and reach a terminal state, without any direct Schedule()
// call from the test.
func TestSchedulerRunDispatchesOnTick(t *testing.T) {
	users := NewStaticUserService()
	queue := NewQueue(users)
	queue.Reconfigure(QueueConfig{
		GlobalSlots: 4,
		Groups:      []GroupSpec{{Name: GroupDefault, Priority: 1, Slots: 4, Strategy: FIFO}},
	})
	governor := NewGovernor(users)
	governor.Reconfigure(GovernorOptions{Groups: []GroupRate{{Name: GroupDefault, SpeedLimit: 0}}})
	store := NewMemoryTransferStore()
	peer := NewFakePeerClient(func(string, string) (int64, error) { return 4096, nil })

	scheduler := NewScheduler(queue, governor, store, peer, users)
	scheduler.SetGlobalSlots(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Run(ctx)
	defer scheduler.Stop()

	tx := &Transfer{Username: "alice", Filename: "a.mp3", Size: 4096, State: StateRequested | StateQueued | StateLocally}
	require.NoError(t, store.AddOrSupersede(tx))
	queue.Enqueue("alice", "a.mp3")
	scheduler.OnPeerStateChanged(ctx)

	require.Eventually(t, func() bool {
		row, err := store.Find(tx.Id)
		return err == nil && row.State.Has(StateCompleted)
	}, 2*time.Second, 10*time.Millisecond, "transfer never reached a terminal state")
}

// TestSchedulerRoundRobinFairnessAcrossUsers dispatches many single-chunk
// uploads from two leecher-group users under a one-slot cap and checks that
// neither user is starved across the run.
func TestSchedulerRoundRobinFairnessAcrossUsers(t *testing.T) {
	users := NewStaticUserService()
	users.Assign("a", GroupLeechers)
	users.Assign("b", GroupLeechers)

	queue := NewQueue(users)
	queue.Reconfigure(QueueConfig{
		GlobalSlots: 1,
		Groups:      []GroupSpec{{Name: GroupLeechers, Priority: 1, Slots: 1, Strategy: RoundRobin}},
	})
	governor := NewGovernor(users)
	governor.Reconfigure(GovernorOptions{Groups: []GroupRate{{Name: GroupLeechers, SpeedLimit: 0}}})
	store := NewMemoryTransferStore()
	peer := NewFakePeerClient(func(string, string) (int64, error) { return 1, nil })

	scheduler := NewScheduler(queue, governor, store, peer, users)
	scheduler.SetGlobalSlots(1)

	dispatched := map[string]int{}
	var mu sync.Mutex
	scheduler.SetOutcomeHandler(func(username string, succeeded bool) {
		mu.Lock()
		dispatched[username]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Run(ctx)
	defer scheduler.Stop()

	for i := 0; i < 20; i++ {
		for _, u := range []string{"a", "b"} {
			tx := &Transfer{Username: u, Filename: itoaFilename(i), Size: 1, State: StateRequested | StateQueued | StateLocally}
			require.NoError(t, store.AddOrSupersede(tx))
			queue.Enqueue(u, tx.Filename)
		}
	}
	scheduler.OnPeerStateChanged(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dispatched["a"]+dispatched["b"] >= 20
	}, 5*time.Second, 10*time.Millisecond, "not enough dispatches observed")

	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, dispatched["a"], 0, "user a was starved")
	require.Greater(t, dispatched["b"], 0, "user b was starved")
}

func itoaFilename(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i]) + ".mp3"
	}
	return string(digits[i/10]) + string(digits[i%10]) + ".mp3"
}
