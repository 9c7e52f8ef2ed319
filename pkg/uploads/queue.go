package uploads

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/slskd/slskd/pkg/metrics"
)

// GroupSpec is one operator-configured group definition consumed by
// Queue.Reconfigure.
type GroupSpec struct {
	Name     string
	Priority int
	Slots    int
	Strategy Strategy
}

// QueueConfig is the full Reconfigure input (kept distinct from
// GovernorOptions since the two components reconfigure from overlapping
// but not identical option subtrees).
type QueueConfig struct {
	GlobalSlots int
	Groups      []GroupSpec
	Hash        uint64
}

// Queue tracks enqueued files per user, grouped by operator-defined group,
// and performs the candidate-selection algorithm the Scheduler drives. A
// single mutex (SyncRoot) covers every operation; the held duration is
// bounded to map lookups and linear scans, never I/O, per the concurrency
// model.
type Queue struct {
	mu sync.Mutex // SyncRoot

	userService UserService
	globalSlots int
	groups      map[string]*Group
	// uploads holds, per username, the enqueued files in enqueue order.
	uploads map[string][]*upload
	// grantedGroups remembers which group a (username, filename) pair's
	// slot was accounted against at Grant time, so Complete decrements the
	// same group even if the user's resolved group has since changed.
	grantedGroups map[string]string
	hash          uint64
	metrics       metrics.UploadMetrics
}

// SetMetrics wires in an UploadMetrics sink. A nil sink disables reporting.
func (q *Queue) SetMetrics(m metrics.UploadMetrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
}

// ReportMetrics pushes each group's current queue depth and UsedSlots to
// the wired metrics sink. Scheduler calls this once per tick.
func (q *Queue) ReportMetrics() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.metrics == nil {
		return
	}

	depths := make(map[string]int, len(q.groups))
	for username, list := range q.uploads {
		group := q.resolveGroup(username)
		for _, u := range list {
			if !u.Ready {
				depths[group]++
			}
		}
	}

	for name, g := range q.groups {
		metrics.SetQueueDepth(q.metrics, name, depths[name])
		metrics.SetUsedSlots(q.metrics, name, g.UsedSlots)
	}
}

// NewQueue creates a Queue seeded with the reserved groups (Privileged,
// Default, Leechers). Call Reconfigure to apply operator-defined groups and
// the global slot cap before scheduling begins.
func NewQueue(userService UserService) *Queue {
	q := &Queue{
		userService:   userService,
		uploads:       make(map[string][]*upload),
		groups:        make(map[string]*Group),
		grantedGroups: make(map[string]string),
	}
	q.groups[GroupPrivileged] = newPrivilegedGroup(0)
	q.groups[GroupDefault] = &Group{Name: GroupDefault, Priority: 1, Strategy: FIFO}
	q.groups[GroupLeechers] = &Group{Name: GroupLeechers, Priority: 2, Strategy: FIFO}
	return q
}

// Reconfigure diffs cfg against the current group set. Groups whose names
// survive keep their UsedSlots; new groups start at zero; groups dropped
// from cfg are removed outright (any of their entries become orphaned and
// will resolve to Default on the next selection pass, since
// UserService.GetGroup is re-resolved every pass). Privileged always keeps Priority 0, FIFO, and
// Slots pinned to GlobalSlots regardless of cfg.
func (q *Queue) Reconfigure(cfg QueueConfig) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cfg.Hash != 0 && cfg.Hash == q.hash {
		return
	}
	q.hash = cfg.Hash

	q.globalSlots = cfg.GlobalSlots

	next := make(map[string]*Group, len(cfg.Groups)+1)
	next[GroupPrivileged] = &Group{
		Name:      GroupPrivileged,
		Priority:  0,
		Slots:     cfg.GlobalSlots,
		Strategy:  FIFO,
		UsedSlots: q.groups[GroupPrivileged].UsedSlots,
	}

	for _, spec := range cfg.Groups {
		if spec.Name == GroupPrivileged {
			continue
		}
		used := 0
		if existing, ok := q.groups[spec.Name]; ok {
			used = existing.UsedSlots
		}
		next[spec.Name] = &Group{
			Name:      spec.Name,
			Priority:  spec.Priority,
			Slots:     spec.Slots,
			Strategy:  spec.Strategy,
			UsedSlots: used,
		}
	}

	q.groups = next
}

// Enqueue registers (username, filename) if it is not already present for
// that user. Idempotent: an exact duplicate is a no-op.
func (q *Queue) Enqueue(username, filename string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, u := range q.uploads[username] {
		if u.Filename == filename {
			return
		}
	}

	q.uploads[username] = append(q.uploads[username], newUpload(username, filename, time.Now()))
}

// AwaitStart returns a channel that closes once the Scheduler grants this
// file a slot, plus a function to read the resolved outcome after the
// channel closes. If the entry is already Ready, the returned channel is
// pre-closed with AwaitGranted. If the entry does not exist at all (never
// enqueued, or already completed/cancelled), the returned channel is
// pre-closed with AwaitCancelled.
func (q *Queue) AwaitStart(username, filename string) (done <-chan struct{}, outcome func() AwaitOutcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	u := q.find(username, filename)
	if u == nil {
		// Grant drops a Ready entry from the list; its slot is still held.
		if _, granted := q.grantedGroups[grantKey(username, filename)]; granted {
			s := newResolvedSignal(AwaitGranted)
			return s.Done(), s.Outcome
		}
		s := newResolvedSignal(AwaitCancelled)
		return s.Done(), s.Outcome
	}
	if u.Ready {
		s := newResolvedSignal(AwaitGranted)
		return s.Done(), s.Outcome
	}
	return u.Grant.Done(), u.Grant.Outcome
}

// Grant marks (username, filename) Ready, increments UsedSlots for its
// current group, and fires its one-shot signal. The entry is removed from
// the per-user ordered list (selection no longer needs to see it) but the
// slot it reserved is held until Complete. Grant is a no-op if the entry
// does not exist.
func (q *Queue) Grant(username, filename string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.uploads[username]
	for i, u := range list {
		if u.Filename != filename {
			continue
		}
		u.Ready = true
		group := q.resolveGroup(username)
		if g, ok := q.groups[group]; ok {
			g.UsedSlots++
		}
		q.grantedGroups[grantKey(username, filename)] = group
		u.Grant.complete(AwaitGranted)
		q.uploads[username] = append(list[:i:i], list[i+1:]...)
		return
	}
}

// Complete decrements UsedSlots for whichever group the slot was granted
// against (not necessarily the user's current group) and removes the
// entry, if one remains (Grant already removed it from the ordered list,
// but a cancellation before Grant leaves it present). Safe to call for an
// entry that was never granted: in that case it cancels the pending
// one-shot signal instead of touching UsedSlots.
func (q *Queue) Complete(username, filename string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.uploads[username]
	for i, u := range list {
		if u.Filename != filename {
			continue
		}
		q.uploads[username] = append(list[:i:i], list[i+1:]...)
		u.Grant.complete(AwaitCancelled)
		return
	}

	key := grantKey(username, filename)
	group, ok := q.grantedGroups[key]
	if !ok {
		return
	}
	delete(q.grantedGroups, key)
	if g, ok := q.groups[group]; ok && g.UsedSlots > 0 {
		g.UsedSlots--
	}
}

func grantKey(username, filename string) string {
	return username + "\x00" + filename
}

// Cancel removes a not-yet-granted entry and resolves its await signal as
// cancelled, without touching UsedSlots (it never held a slot). Returns
// true if an entry was found and removed.
func (q *Queue) Cancel(username, filename string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.uploads[username]
	for i, u := range list {
		if u.Filename != filename {
			continue
		}
		q.uploads[username] = append(list[:i:i], list[i+1:]...)
		u.Grant.complete(AwaitCancelled)
		return true
	}
	return false
}

func (q *Queue) find(username, filename string) *upload {
	for _, u := range q.uploads[username] {
		if u.Filename == filename {
			return u
		}
	}
	return nil
}

func (q *Queue) resolveGroup(username string) string {
	group := q.userService.GetGroup(username)
	if _, ok := q.groups[group]; ok {
		return group
	}
	return GroupDefault
}

// candidate is the Scheduler's view of one selectable (username, filename)
// pair.
type candidate struct {
	Username   string
	Filename   string
	EnqueuedAt time.Time
}

// SelectNext runs the §4.3 selection algorithm under SyncRoot: groups in
// (Priority asc, Name asc) order, first group with room and a non-empty
// candidate set wins, FIFO picks the group's oldest entry and RoundRobin
// picks a uniformly random contending user's oldest entry. Returns false if
// no group has both room and a candidate.
func (q *Queue) SelectNext() (candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	names := make([]string, 0, len(q.groups))
	for name := range q.groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		gi, gj := q.groups[names[i]], q.groups[names[j]]
		if gi.Priority != gj.Priority {
			return gi.Priority < gj.Priority
		}
		return gi.Name < gj.Name
	})

	for _, name := range names {
		g := q.groups[name]
		if !g.HasRoom() {
			continue
		}

		members := q.candidatesForGroup(name)
		if len(members) == 0 {
			continue
		}

		if g.Strategy == RoundRobin {
			return q.pickRoundRobin(members), true
		}
		return q.pickFIFO(members), true
	}

	return candidate{}, false
}

// candidatesForGroup collects every not-yet-ready entry whose enqueuer
// currently resolves to group name, across all users. Re-resolving group
// membership at selection time (rather than trusting the group recorded at
// Enqueue) is what lets a user's privilege change take effect immediately.
func (q *Queue) candidatesForGroup(name string) []candidate {
	var out []candidate
	for username, list := range q.uploads {
		if q.resolveGroup(username) != name {
			continue
		}
		for _, u := range list {
			if u.Ready {
				continue
			}
			out = append(out, candidate{Username: username, Filename: u.Filename, EnqueuedAt: u.EnqueuedAt})
		}
	}
	return out
}

func (q *Queue) pickFIFO(members []candidate) candidate {
	best := members[0]
	for _, c := range members[1:] {
		if c.EnqueuedAt.Before(best.EnqueuedAt) {
			best = c
		}
	}
	return best
}

func (q *Queue) pickRoundRobin(members []candidate) candidate {
	users := make(map[string]bool, len(members))
	var distinct []string
	for _, c := range members {
		if !users[c.Username] {
			users[c.Username] = true
			distinct = append(distinct, c.Username)
		}
	}
	sort.Strings(distinct) // stable base ordering before randomizing the pick
	chosen := distinct[rand.Intn(len(distinct))]

	var oldest *candidate
	for i := range members {
		if members[i].Username != chosen {
			continue
		}
		if oldest == nil || members[i].EnqueuedAt.Before(oldest.EnqueuedAt) {
			oldest = &members[i]
		}
	}
	return *oldest
}

// Depth returns the number of not-yet-granted entries queued for username.
func (q *Queue) Depth(username string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, u := range q.uploads[username] {
		if !u.Ready {
			n++
		}
	}
	return n
}

// GroupSnapshot returns a copy of every group's current accounting, for
// metrics and tests.
func (q *Queue) GroupSnapshot() map[string]Group {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]Group, len(q.groups))
	for name, g := range q.groups {
		out[name] = *g
	}
	return out
}
