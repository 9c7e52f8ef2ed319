package uploads

import "testing"

func TestStatsTrackerRecordQueuedAndOutcome(t *testing.T) {
	s := newStatsTracker()

	s.recordQueued("alice", 1000)
	if s.queuedBytes("alice") != 1000 {
		t.Fatalf("expected queuedBytes=1000, got %d", s.queuedBytes("alice"))
	}

	s.recordOutcome("alice", true)

	if s.queuedBytes("alice") != 0 {
		t.Fatalf("expected queuedBytes reset to 0 after an outcome, got %d", s.queuedBytes("alice"))
	}

	daily, weekly := s.snapshot("alice")
	if daily.successes != 1 || weekly.successes != 1 {
		t.Fatalf("expected one success recorded in both windows, got daily=%+v weekly=%+v", daily, weekly)
	}
}

func TestStatsTrackerRecordFailure(t *testing.T) {
	s := newStatsTracker()
	s.recordOutcome("bob", false)

	daily, _ := s.snapshot("bob")
	if daily.failures != 1 || daily.successes != 0 {
		t.Fatalf("expected one failure recorded, got %+v", daily)
	}
}

func TestStatsTrackerUnknownUserSnapshotIsZero(t *testing.T) {
	s := newStatsTracker()
	daily, weekly := s.snapshot("nobody")
	if daily.successes != 0 || daily.failures != 0 || weekly.successes != 0 || weekly.failures != 0 {
		t.Fatalf("expected a zero-value snapshot for an unknown user, got daily=%+v weekly=%+v", daily, weekly)
	}
}
