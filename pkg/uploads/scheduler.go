package uploads

import (
	"context"
	"sync"
	"time"

	"github.com/slskd/slskd/internal/logger"
	"github.com/slskd/slskd/pkg/metrics"
	"github.com/slskd/slskd/pkg/uploads/uploaderrors"
)

// scheduleInterval is the periodic tick Schedule() and Monitor() run on,
// independent of peer-state-change triggered calls.
const scheduleInterval = 5 * time.Second

// task is the Scheduler's tracked handle for one in-flight dispatch.
type task struct {
	id        string
	group     string
	cancel    context.CancelFunc
	done      chan struct{}
	result    *Transfer
	startedAt time.Time

	// pendingGrant holds the Grant handle from the most recent Governor
	// call, consumed by the matching Reporter call. A single transfer
	// sends one chunk at a time, so at most one is ever outstanding.
	pendingGrant Grant
}

// Scheduler couples Queue, Governor, PeerClient, and TransferStore, and
// drives forward progress: Schedule() picks at most one candidate per call
// and launches it; Monitor() reconciles finalization for tasks that ended
// without a Completed state ever reaching the store.
type Scheduler struct {
	queue       *Queue
	governor    *Governor
	store       TransferStore
	peer        PeerClient
	userService UserService

	globalSlots int

	scheduleMu sync.Mutex // collapses bursts of Schedule() triggers to one pass
	monitorMu  sync.Mutex

	tasksMu sync.Mutex
	tasks   map[string]*task // keyed by Transfer Id

	// onOutcome, if set, is called once per finished transfer with whether
	// it succeeded, feeding Manager's per-user statistics ring.
	onOutcome func(username string, succeeded bool)

	metrics metrics.UploadMetrics

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler. Call SetGlobalSlots once Options are
// loaded, then Run to start its periodic tick.
func NewScheduler(queue *Queue, governor *Governor, store TransferStore, peer PeerClient, userService UserService) *Scheduler {
	return &Scheduler{
		queue:       queue,
		governor:    governor,
		store:       store,
		peer:        peer,
		userService: userService,
		tasks:       make(map[string]*task),
		stopCh:      make(chan struct{}),
	}
}

// SetMetrics wires in an UploadMetrics sink. A nil sink disables reporting.
func (s *Scheduler) SetMetrics(m metrics.UploadMetrics) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.metrics = m
}

// SetOutcomeHandler registers fn to be called once per finished transfer.
func (s *Scheduler) SetOutcomeHandler(fn func(username string, succeeded bool)) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.onOutcome = fn
}

// SetGlobalSlots updates the soft cap Schedule() checks against.
func (s *Scheduler) SetGlobalSlots(n int) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.globalSlots = n
}

// Run starts the periodic tick loop that calls Schedule() and Monitor()
// every scheduleInterval, until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(scheduleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Schedule(ctx)
				s.Monitor(ctx)
				s.queue.ReportMetrics()
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop ends the tick loop and waits for it and every launched task
// goroutine to exit. In-flight tasks are not cancelled, so Stop returns only
// once they finish; callers that want a prompt shutdown should TryCancel
// each tracked task first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// OnPeerStateChanged is the subscription hook external callers wire to
// peer-presence events; per §4.4 it triggers the same Schedule() pass a
// tick does.
func (s *Scheduler) OnPeerStateChanged(ctx context.Context) {
	s.Schedule(ctx)
}

// Schedule runs the §4.4 Schedule() algorithm: refuse on global overshoot,
// ask the Store for queued-locally candidates to make visible to the
// Queue's selection algorithm, then launch at most one. Concurrent calls
// collapse to a single running pass.
func (s *Scheduler) Schedule(ctx context.Context) {
	if !s.scheduleMu.TryLock() {
		return
	}
	defer s.scheduleMu.Unlock()

	if s.peer.ActiveUploadCount() > s.globalSlots {
		// Soft cap: finalization and dispatch can transiently overlap.
		return
	}

	rows, err := s.store.List(func(t *Transfer) bool {
		return t.State.QueuedLocally() && !t.State.Has(StateCompleted)
	}, false)
	if err != nil {
		logger.ErrorCtx(ctx, "failed listing queued-locally transfers", logger.Err(err))
		return
	}
	for _, row := range rows {
		s.queue.Enqueue(row.Username, row.Filename)
	}

	cand, ok := s.queue.SelectNext()
	if !ok {
		return
	}

	row := findByKey(rows, cand.Username, cand.Filename)
	if row == nil {
		// The Store row moved on (e.g. cancelled) between listing and
		// selection; the Queue entry will be cleaned up by its own
		// cancellation path. Nothing to launch.
		return
	}

	s.launch(ctx, row)
}

func findByKey(rows []*Transfer, username, filename string) *Transfer {
	for _, r := range rows {
		if r.Username == username && r.Filename == filename {
			return r
		}
	}
	return nil
}

// launch starts a tracked task for row via the PeerClient, wiring callbacks
// to Governor, Queue, and Store per §4.5.
func (s *Scheduler) launch(ctx context.Context, row *Transfer) {
	s.tasksMu.Lock()
	if _, exists := s.tasks[row.Id]; exists {
		s.tasksMu.Unlock()
		err := uploaderrors.NewDuplicateScheduleError(row.Username, row.Filename)
		logger.WarnCtx(ctx, "duplicate schedule suppressed", logger.TransferID(row.Id), logger.Err(err))
		return
	}

	group := s.userService.GetGroup(row.Username)
	strategy := ""
	if g, ok := s.queue.GroupSnapshot()[group]; ok {
		strategy = g.Strategy.String()
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{id: row.Id, cancel: cancel, done: make(chan struct{}), group: group, startedAt: time.Now()}
	s.tasks[row.Id] = t
	metricsSink := s.metrics
	s.tasksMu.Unlock()

	metrics.RecordDispatch(metricsSink, group, strategy)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)

		callbacks := s.callbacksFor(row)

		result, err := s.peer.UploadAsync(taskCtx, row.Username, row.Filename, row.LocalPath, callbacks)
		if err != nil && result == nil {
			// Launch failed synchronously: fire-and-forget per §7.
			peerErr := uploaderrors.NewTransientPeerError(row.Username, row.Filename, err.Error())
			row.MarkCompleted(StateErrored, peerErr.Error())
			if uerr := s.store.Update(row); uerr != nil {
				logger.ErrorCtx(ctx, "failed persisting launch failure", logger.TransferID(row.Id), logger.Err(uerr))
			}
			result = row
		}

		t.result = result
	}()
}

func (s *Scheduler) callbacksFor(row *Transfer) TransferCallbacks {
	return TransferCallbacks{
		StateChanged: func(ctx context.Context, prev, cur State, tx *Transfer) {
			row.State = cur
			if err := s.store.Update(row); err != nil {
				logger.ErrorCtx(ctx, "failed persisting state change", logger.TransferID(row.Id), logger.Err(err))
			}
			if cur.QueuedLocally() && !prev.QueuedLocally() {
				s.queue.Enqueue(row.Username, row.Filename)
			}
		},
		ProgressUpdated: func(ctx context.Context, tx *Transfer) {
			row.BytesTransferred = tx.BytesTransferred
			row.AverageSpeed = tx.AverageSpeed
			if err := s.store.Update(row); err != nil {
				logger.ErrorCtx(ctx, "failed persisting progress", logger.TransferID(row.Id), logger.Err(err))
			}
		},
		Governor: func(ctx context.Context, tx *Transfer, requested int64) (int64, error) {
			grant, n, err := s.governor.Acquire(ctx, row.Username, requested)
			s.tasksMu.Lock()
			if t, ok := s.tasks[row.Id]; ok {
				t.pendingGrant = grant
			}
			s.tasksMu.Unlock()
			return n, err
		},
		Reporter: func(ctx context.Context, tx *Transfer, attempted, granted, actual int64) {
			s.tasksMu.Lock()
			t, ok := s.tasks[row.Id]
			var grant Grant
			if ok {
				grant = t.pendingGrant
			}
			s.tasksMu.Unlock()
			s.governor.Return(grant, granted, actual)
		},
		SlotAwaiter: func(ctx context.Context, tx *Transfer) (<-chan struct{}, func() AwaitOutcome) {
			// Schedule already selected this file to launch it, so the slot
			// is granted here and the await resolves at once.
			s.queue.Grant(row.Username, row.Filename)
			return s.queue.AwaitStart(row.Username, row.Filename)
		},
		SlotReleased: func(ctx context.Context, tx *Transfer) {
			// The peer stamps the terminal state on tx; persist it before
			// the slot is released and the next Schedule pass lists rows.
			if tx.State.Has(StateCompleted) {
				row.State, row.EndedAt, row.Exception = tx.State, tx.EndedAt, tx.Exception
				if err := s.store.Update(row); err != nil {
					logger.ErrorCtx(ctx, "failed persisting terminal state", logger.TransferID(row.Id), logger.Err(err))
				}
			}
			s.queue.Complete(row.Username, row.Filename)

			s.tasksMu.Lock()
			t, ok := s.tasks[row.Id]
			delete(s.tasks, row.Id)
			onOutcome := s.onOutcome
			metricsSink := s.metrics
			s.tasksMu.Unlock()

			succeeded := row.State.Has(StateSucceeded)
			if ok {
				metrics.RecordOutcome(metricsSink, t.group, succeeded, time.Since(t.startedAt))
			}

			if onOutcome != nil {
				onOutcome(row.Username, succeeded)
			}

			s.Schedule(ctx)
		},
	}
}

// TryCancel fires the cancellation handle for the given Transfer Id and
// removes it from the tracked set. Returns true if a task was found and
// cancelled, false if no such task is tracked (already completed, or
// never launched).
func (s *Scheduler) TryCancel(id string) bool {
	s.tasksMu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.tasksMu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Monitor reconciles tasks whose goroutine has exited but whose final
// observed state never reached Completed — the Fatal-persistence-failure
// path described in §7 — by retrofitting Completed|Errored and persisting.
func (s *Scheduler) Monitor(ctx context.Context) {
	if !s.monitorMu.TryLock() {
		return
	}
	defer s.monitorMu.Unlock()

	s.tasksMu.Lock()
	var stale []*task
	for id, t := range s.tasks {
		select {
		case <-t.done:
			stale = append(stale, t)
			delete(s.tasks, id)
		default:
		}
	}
	s.tasksMu.Unlock()

	for _, t := range stale {
		if t.result != nil && t.result.State.Has(StateCompleted) {
			continue
		}
		row, err := s.store.Find(t.id)
		if err != nil || row == nil {
			logger.ErrorCtx(ctx, "failed reconciling orphaned task", logger.TransferID(t.id), logger.Err(err))
			continue
		}
		if row.State.Has(StateCompleted) {
			continue
		}
		row.MarkCompleted(StateErrored, "reconciled by monitor: task ended without a terminal state")
		if err := s.store.Update(row); err != nil {
			logger.ErrorCtx(ctx, "failed persisting reconciled transfer", logger.TransferID(t.id), logger.Err(err))
		}
	}
}
