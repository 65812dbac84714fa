package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/dirscrape/dataset"
)

// Report summarises a finished run.
type Report struct {
	ID         string
	Status     RunStatus
	Input      string
	URLColumn  string
	Output     string // empty when nothing was written
	Written    bool
	Progress   Progress
	Rows       []RowResult
	Columns    []string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	// Dataset is the final table, nil when the run aborted before reading it.
	Dataset *dataset.Dataset
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is the one-line operator summary.
func (r *Report) Summary() string {
	if !r.Written {
		return fmt.Sprintf("%s: %d rows processed, nothing written", r.Status, r.Progress.Done)
	}
	return fmt.Sprintf("%s: %d rows processed (%d enriched, %d without data, %d unmodified, %d skipped), %d columns written to %s",
		r.Status, r.Progress.Done, r.Progress.Merged, r.Progress.NoData,
		r.Progress.Unmodified, r.Progress.Skipped, len(r.Columns), r.Output)
}

func newRunID() string {
	return uuid.NewString()
}
