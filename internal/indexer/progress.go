package indexer

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Progress is a point-in-time view of a running sync.
type Progress struct {
	RunID     string    `json:"runId"`
	Phase     State     `json:"phase"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	ETA       string    `json:"eta,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// ProgressFunc receives progress updates from the orchestrating goroutine.
type ProgressFunc func(Progress)

// RunContext carries the per-run parameters and the progress side channel.
// It is created at run start and owned by the orchestrating goroutine.
type RunContext struct {
	ID          string
	StartedAt   time.Time
	Cursor      time.Time
	Concurrency int
	ChunkSize   int
	BatchSize   int

	phase      State
	phaseStart time.Time
	publish    func(Progress)
	now        func() time.Time
}

func newRunContext(id string, startedAt time.Time, publish func(Progress), now func() time.Time) *RunContext {
	if now == nil {
		now = time.Now
	}
	return &RunContext{
		ID:        id,
		StartedAt: startedAt,
		publish:   publish,
		now:       now,
	}
}

// Report publishes progress for phase. The ETA is extrapolated from the
// rate observed since the phase was first reported.
func (rc *RunContext) Report(phase State, processed, total int) {
	now := rc.now()
	if phase != rc.phase {
		rc.phase = phase
		rc.phaseStart = now
	}

	p := Progress{
		RunID:     rc.ID,
		Phase:     phase,
		Processed: processed,
		Total:     total,
		StartedAt: rc.StartedAt,
	}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	if processed > 0 && processed < total {
		elapsed := now.Sub(rc.phaseStart)
		remaining := time.Duration(float64(elapsed) / float64(processed) * float64(total-processed))
		p.ETA = humanize.RelTime(now, now.Add(remaining), "ago", "from now")
	}

	if rc.publish != nil {
		rc.publish(p)
	}
}
