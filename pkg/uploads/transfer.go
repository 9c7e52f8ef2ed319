package uploads

import (
	"strings"
	"time"
)

// Direction distinguishes uploads from downloads. The core concerns itself
// only with Upload; Download exists so the Transfer shape matches what a
// persistence layer round-trips for both directions.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionDownload {
		return "Download"
	}
	return "Upload"
}

// State is a flag-set over the orthogonal phases and outcomes a Transfer can
// be in. Flags combine freely (e.g. Queued|Locally, or Completed|Cancelled);
// Completed is terminal and must be set exactly once. Comparisons must use
// Has, never ==, since a Transfer's State is rarely a single bit.
type State uint32

const (
	StateRequested State = 1 << iota
	StateQueued
	StateLocally
	StateRemotely
	StateInitializing
	StateInProgress
	StateCompleted
	StateSucceeded
	StateCancelled
	StateTimedOut
	StateErrored
	StateRejected
	StateAborted
)

var stateNames = []struct {
	flag State
	name string
}{
	{StateRequested, "Requested"},
	{StateQueued, "Queued"},
	{StateLocally, "Locally"},
	{StateRemotely, "Remotely"},
	{StateInitializing, "Initializing"},
	{StateInProgress, "InProgress"},
	{StateCompleted, "Completed"},
	{StateSucceeded, "Succeeded"},
	{StateCancelled, "Cancelled"},
	{StateTimedOut, "TimedOut"},
	{StateErrored, "Errored"},
	{StateRejected, "Rejected"},
	{StateAborted, "Aborted"},
}

// Has reports whether s contains every bit in flags.
func (s State) Has(flags State) bool {
	return s&flags == flags
}

// HasAny reports whether s contains at least one bit of flags.
func (s State) HasAny(flags State) bool {
	return s&flags != 0
}

// String renders the flag-set as a pipe-joined list of set flag names, in a
// stable order, for logging and persistence round-tripping.
func (s State) String() string {
	var names []string
	for _, e := range stateNames {
		if s.Has(e.flag) {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}

// QueuedLocally reports whether the transfer has been handed to the peer
// client but not yet granted a slot by the scheduler — the state the
// scheduler's candidate query (spec §4.4 step 2) selects on.
func (s State) QueuedLocally() bool {
	return s.Has(StateQueued) && s.Has(StateLocally) &&
		!s.HasAny(StateInitializing|StateInProgress|StateCompleted|StateSucceeded|
			StateCancelled|StateTimedOut|StateErrored|StateRejected|StateAborted)
}

// Transfer is the persistent record of a single upload or download, keyed
// by Id. (Username, Filename) uniquely identifies the active upload; a
// duplicate enqueue supersedes the prior row by marking it Removed.
type Transfer struct {
	Id        string
	Username  string
	Direction Direction
	Filename  string
	LocalPath string

	Size             int64
	StartOffset      int64
	BytesTransferred int64
	AverageSpeed     float64

	State State

	RequestedAt time.Time
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time

	PlaceInQueue *int
	Exception    *string

	Removed bool
}

// Key returns the (Username, Filename) pair that uniquely identifies the
// active upload for this transfer.
func (t *Transfer) Key() (username, filename string) {
	return t.Username, t.Filename
}

// MarkCompleted sets State |= Completed|outcome and stamps EndedAt, the
// invariant spec §3 requires ("EndedAt is set whenever State contains
// Completed"). It is idempotent: calling it twice does not stomp the first
// EndedAt.
func (t *Transfer) MarkCompleted(outcome State, exception string) {
	t.State |= StateCompleted | outcome
	if t.EndedAt == nil {
		now := time.Now()
		t.EndedAt = &now
	}
	if exception != "" {
		t.Exception = &exception
	}
}

// Clone returns a shallow copy safe for a caller to mutate without
// affecting the Store's own record — the "snapshot read" contract of §5.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		sa := *t.StartedAt
		c.StartedAt = &sa
	}
	if t.EndedAt != nil {
		ea := *t.EndedAt
		c.EndedAt = &ea
	}
	if t.PlaceInQueue != nil {
		p := *t.PlaceInQueue
		c.PlaceInQueue = &p
	}
	if t.Exception != nil {
		e := *t.Exception
		c.Exception = &e
	}
	return &c
}
