package indexer

import (
	"testing"
	"time"
)

func TestRunContextReport(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	now := func() time.Time { return clock }

	var got []Progress
	rc := newRunContext("run-1", clock, func(p Progress) { got = append(got, p) }, now)

	rc.Report(StateDetecting, 0, 100)
	clock = clock.Add(10 * time.Second)
	rc.Report(StateDetecting, 50, 100)
	rc.Report(StateDetecting, 100, 100)

	if len(got) != 3 {
		t.Fatalf("published %d updates, want 3", len(got))
	}

	first := got[0]
	if first.RunID != "run-1" || first.Phase != StateDetecting || first.Percent != 0 {
		t.Errorf("first update = %+v", first)
	}
	if first.ETA != "" {
		t.Errorf("ETA with nothing processed = %q, want empty", first.ETA)
	}

	mid := got[1]
	if mid.Percent != 50 {
		t.Errorf("Percent = %v, want 50", mid.Percent)
	}
	if mid.ETA != "10 seconds from now" {
		t.Errorf("ETA = %q, want %q", mid.ETA, "10 seconds from now")
	}

	if got[2].ETA != "" {
		t.Errorf("ETA when done = %q, want empty", got[2].ETA)
	}
}

func TestRunContextPhaseResetsRate(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	now := func() time.Time { return clock }

	var last Progress
	rc := newRunContext("run", clock, func(p Progress) { last = p }, now)

	rc.Report(StateDetecting, 0, 10)
	clock = clock.Add(time.Hour)
	rc.Report(StateUpserting, 0, 10)
	clock = clock.Add(time.Minute)
	rc.Report(StateUpserting, 5, 10)

	if last.ETA != "1 minute from now" {
		t.Errorf("ETA = %q, want %q", last.ETA, "1 minute from now")
	}
}

func TestRunContextZeroTotal(t *testing.T) {
	var last Progress
	rc := newRunContext("run", time.Now(), func(p Progress) { last = p }, nil)
	rc.Report(StateDeleting, 0, 0)
	if last.Percent != 0 || last.ETA != "" {
		t.Errorf("zero total progress = %+v", last)
	}
}
