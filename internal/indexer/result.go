package indexer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// maxRecordedErrors caps SyncResult.Errors; ErrorCount stays exact.
const maxRecordedErrors = 100

// ItemError is a failure confined to one item.
type ItemError struct {
	ID    string
	Phase State
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.ID, e.Phase, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as text.
func (e ItemError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		Phase State  `json:"phase"`
		Error string `json:"error"`
	}{e.ID, e.Phase, msg})
}

// SyncResult describes one finished run.
type SyncResult struct {
	RunID      string        `json:"runId"`
	State      State         `json:"state"`
	Phases     []State       `json:"phases"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Elapsed    time.Duration `json:"elapsed"`
	Cursor     time.Time     `json:"cursor"`
	ItemCount  int           `json:"itemCount"`
	Scanned    int           `json:"scanned"`

	New       int `json:"new"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Errored   int `json:"errored"`
	Deleted   int `json:"deleted"`

	NewIDs      []string `json:"newIds"`
	ModifiedIDs []string `json:"modifiedIds"`
	DeletedIDs  []string `json:"deletedIds"`
	ErroredIDs  []string `json:"erroredIds"`

	Errors     []ItemError `json:"errors"`
	ErrorCount int         `json:"errorCount"`

	// FailedIn is the phase that was running when a fatal error occurred.
	FailedIn State  `json:"failedIn,omitempty"`
	Err      error  `json:"-"`
	Fatal    string `json:"fatal,omitempty"`
}

// addError records a per-item error, keeping at most maxRecordedErrors.
func (r *SyncResult) addError(e ItemError) {
	r.ErrorCount++
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, e)
	}
}

// Changed reports whether the run wrote anything.
func (r *SyncResult) Changed() bool {
	return r.New+r.Modified+r.Deleted > 0
}

// Summary returns a one-line human description of the run.
func (r *SyncResult) Summary() string {
	elapsed := r.Elapsed.Round(time.Millisecond)

	switch {
	case r.State == StateFailed && (r.FailedIn == StateIdle || r.FailedIn == StateValidating || r.FailedIn == StateConnecting):
		return fmt.Sprintf("failed to start: %v", r.Err)
	case r.State == StateFailed:
		return fmt.Sprintf("sync failed while %s after %v: %v", r.FailedIn, elapsed, r.Err)
	case !r.Changed() && r.ErrorCount == 0:
		return fmt.Sprintf("nothing to do: %s items unchanged (%v)", humanize.Comma(int64(r.Unchanged)), elapsed)
	case r.ErrorCount > 0:
		return fmt.Sprintf("partial success with %s errors: %d new, %d modified, %d deleted, %d unchanged, %d errored in %v",
			humanize.Comma(int64(r.ErrorCount)), r.New, r.Modified, r.Deleted, r.Unchanged, r.Errored, elapsed)
	default:
		return fmt.Sprintf("synced %s items: %d new, %d modified, %d deleted, %d unchanged in %v",
			humanize.Comma(int64(r.ItemCount)), r.New, r.Modified, r.Deleted, r.Unchanged, elapsed)
	}
}
