package uploads

import (
	"sync"
	"time"
)

// period is one day's or one week's worth of counters, grounded on the
// teacher's GCStats accumulator pattern: plain counters that start over once
// windowEnd has passed, rather than a time-series store, since the core only
// needs "daily" and "weekly" totals, not history. There is no background
// rollover: recordOutcome resets an elapsed window, and snapshot reports an
// elapsed window as zero.
type period struct {
	successes int
	failures  int
	windowEnd time.Time
}

// userStats is one user's statistics: queued-bytes gauge plus rolling
// daily and weekly success/failure counters.
type userStats struct {
	queuedBytes int64
	daily       period
	weekly      period
}

// statsTracker is the in-memory backing store for Manager.GetUserStatistics.
type statsTracker struct {
	mu    sync.Mutex
	users map[string]*userStats
}

func newStatsTracker() *statsTracker {
	return &statsTracker{users: make(map[string]*userStats)}
}

func (t *statsTracker) get(username string) *userStats {
	u, ok := t.users[username]
	if !ok {
		now := time.Now()
		u = &userStats{
			daily:  period{windowEnd: now.Add(24 * time.Hour)},
			weekly: period{windowEnd: now.Add(7 * 24 * time.Hour)},
		}
		t.users[username] = u
	}
	return u
}

// recordQueued adds size to username's queued-bytes total. The total is not
// decremented per file: recordOutcome clears it to zero whenever any of the
// user's transfers finishes.
func (t *statsTracker) recordQueued(username string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.get(username)
	u.queuedBytes += size
}

func (t *statsTracker) queuedBytes(username string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[username]
	if !ok {
		return 0
	}
	return u.queuedBytes
}

// recordOutcome rolls a finished transfer's success/failure into the daily
// and weekly counters, resetting either window that has elapsed.
func (t *statsTracker) recordOutcome(username string, succeeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.get(username)
	now := time.Now()

	if !now.Before(u.daily.windowEnd) {
		u.daily = period{windowEnd: now.Add(24 * time.Hour)}
	}
	if !now.Before(u.weekly.windowEnd) {
		u.weekly = period{windowEnd: now.Add(7 * 24 * time.Hour)}
	}

	if succeeded {
		u.daily.successes++
		u.weekly.successes++
	} else {
		u.daily.failures++
		u.weekly.failures++
	}

	if u.queuedBytes > 0 {
		u.queuedBytes = 0
	}
}

func (t *statsTracker) snapshot(username string) (daily, weekly period) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[username]
	if !ok {
		return period{}, period{}
	}
	daily, weekly = u.daily, u.weekly
	now := time.Now()
	if !now.Before(daily.windowEnd) {
		daily = period{}
	}
	if !now.Before(weekly.windowEnd) {
		weekly = period{}
	}
	return daily, weekly
}
