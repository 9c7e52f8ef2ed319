package uploads

import (
	"context"
	"time"

	"github.com/slskd/slskd/internal/logger"
	"github.com/slskd/slskd/pkg/metrics"
	"github.com/slskd/slskd/pkg/uploads/uploaderrors"
)

// PathResolver recovers the local filesystem path and size for a
// (username, filename) pair and reports whether the file exists in any
// shared directory. The real share scanner is out of scope; the core
// consumes only this contract, and trusts the reported size rather than
// re-statting the path itself, since a resolver backed by something other
// than the local filesystem (a virtual share, a remote index) may not have
// a statable path at all.
type PathResolver interface {
	Resolve(username, filename string) (localPath string, size int64, ok bool)
}

// Manager is the facade exposed to thin callers above the core (HTTP
// controllers, the CLI), grounded on the teacher's TransferManager: a
// single type that owns the Queue, Governor, Scheduler, and Store and
// exposes only the operations spec.md §6 names as "Produced".
type Manager struct {
	queue     *Queue
	governor  *Governor
	scheduler *Scheduler
	store     TransferStore
	resolver  PathResolver
	stats     *statsTracker
}

// NewManager wires the CORE components together and returns a ready
// Manager. Callers must still call Run to start the Scheduler's tick loop.
func NewManager(queue *Queue, governor *Governor, scheduler *Scheduler, store TransferStore, resolver PathResolver) *Manager {
	m := &Manager{
		queue:     queue,
		governor:  governor,
		scheduler: scheduler,
		store:     store,
		resolver:  resolver,
		stats:     newStatsTracker(),
	}
	scheduler.SetOutcomeHandler(m.RecordOutcome)
	return m
}

// SetMetrics wires an UploadMetrics sink into the Queue, Governor, and
// Scheduler. A nil sink disables reporting everywhere.
func (m *Manager) SetMetrics(sink metrics.UploadMetrics) {
	m.queue.SetMetrics(sink)
	m.governor.SetMetrics(sink)
	m.scheduler.SetMetrics(sink)
}

// Run starts the Scheduler's periodic tick loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.scheduler.Run(ctx)
}

// Close stops the Scheduler and the Governor's buckets.
func (m *Manager) Close() {
	m.scheduler.Stop()
	m.governor.Close()
}

// Enqueue recovers the local path for (username, filename), validates it
// exists, writes the initial Transfer row, asks the Scheduler to consider
// it on the next pass, and returns immediately. A Not-found resolver
// result is surfaced to the caller before any row is written, per §7.
func (m *Manager) Enqueue(ctx context.Context, username, filename string) error {
	localPath, size, ok := m.resolver.Resolve(username, filename)
	if !ok {
		return uploaderrors.NewNotFoundError(username, filename)
	}

	now := time.Now()
	tx := &Transfer{
		Username:    username,
		Filename:    filename,
		LocalPath:   localPath,
		Size:        size,
		Direction:   DirectionUpload,
		State:       StateRequested | StateQueued | StateLocally,
		RequestedAt: now,
		EnqueuedAt:  now,
	}

	if err := m.store.AddOrSupersede(tx); err != nil {
		return uploaderrors.NewPersistenceError(username, filename, err.Error())
	}

	m.queue.Enqueue(username, filename)
	m.stats.recordQueued(username, size)

	logger.InfoCtx(ctx, "upload enqueued", logger.Username(username), logger.Filename(filename), logger.Size(size))

	m.scheduler.Schedule(ctx)
	return nil
}

// TryCancel fires the cancellation handle for id, if tracked, or — if the
// transfer is still waiting on a slot and was never launched — cancels its
// Queue entry directly. Returns true the first time it successfully
// cancels something; subsequent calls for the same id return false.
func (m *Manager) TryCancel(id string) bool {
	if m.scheduler.TryCancel(id) {
		return true
	}

	row, err := m.store.Find(id)
	if err != nil || row == nil || row.State.Has(StateCompleted) {
		return false
	}

	if m.queue.Cancel(row.Username, row.Filename) {
		row.MarkCompleted(StateCancelled, "")
		_ = m.store.Update(row)
		return true
	}

	return false
}

// List returns every Transfer matching filter.
func (m *Manager) List(filter func(*Transfer) bool, includeRemoved bool) ([]*Transfer, error) {
	return m.store.List(filter, includeRemoved)
}

// Remove soft-deletes id. Rejects non-completed transfers.
func (m *Manager) Remove(id string) error {
	return m.store.SoftDelete(id)
}

// UserStatistics is the GetUserStatistics result shape named in §6.
type UserStatistics struct {
	QueuedFiles      int
	QueuedBytes      int64
	DailySuccesses   int
	DailyFailures    int
	WeeklySuccesses  int
	WeeklyFailures   int
}

// GetUserStatistics returns username's current queue depth plus
// daily/weekly success and failure counters.
func (m *Manager) GetUserStatistics(username string) UserStatistics {
	depth := m.queue.Depth(username)
	daily, weekly := m.stats.snapshot(username)
	return UserStatistics{
		QueuedFiles:     depth,
		QueuedBytes:     m.stats.queuedBytes(username),
		DailySuccesses:  daily.successes,
		DailyFailures:   daily.failures,
		WeeklySuccesses: weekly.successes,
		WeeklyFailures:  weekly.failures,
	}
}

// RecordOutcome feeds a finished transfer's result into the per-user
// statistics ring. Scheduler calls this from its finalization path.
func (m *Manager) RecordOutcome(username string, succeeded bool) {
	m.stats.recordOutcome(username, succeeded)
}

// Reconcile scans the Store for rows that lack Completed and retrofits them
// to Completed|Errored, grounded on the teacher's recovery-on-startup pass.
// It must run once, before the Scheduler's tick loop starts, so a crash
// mid-upload does not leave a row permanently "hanging" per §7's Fatal note.
func (m *Manager) Reconcile(ctx context.Context) error {
	rows, err := m.store.List(func(t *Transfer) bool {
		return !t.State.Has(StateCompleted)
	}, false)
	if err != nil {
		return err
	}

	for _, row := range rows {
		row.MarkCompleted(StateErrored, "reconciled at startup: no terminal state recorded before shutdown")
		if err := m.store.Update(row); err != nil {
			logger.ErrorCtx(ctx, "failed persisting startup reconciliation", logger.TransferID(row.Id), logger.Err(err))
			continue
		}
		logger.WarnCtx(ctx, "reconciled hanging transfer at startup", logger.TransferID(row.Id), logger.Username(row.Username), logger.Filename(row.Filename))
	}

	return nil
}
