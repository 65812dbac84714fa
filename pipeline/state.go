package pipeline

import "time"

// RowState is where a row is in its lifecycle.
//
//	PENDING → FETCHED → EXTRACTED → MERGED
//	PENDING → FETCHED → EXTRACTED → NO_DATA
//	PENDING → SKIPPED
//	PENDING → FETCH_FAILED → UNMODIFIED
type RowState int

const (
	RowPending RowState = iota
	RowFetched
	RowExtracted
	RowMerged
	RowNoData
	RowSkipped
	RowFetchFailed
	RowUnmodified
)

func (s RowState) String() string {
	switch s {
	case RowPending:
		return "pending"
	case RowFetched:
		return "fetched"
	case RowExtracted:
		return "extracted"
	case RowMerged:
		return "merged"
	case RowNoData:
		return "no_data"
	case RowSkipped:
		return "skipped"
	case RowFetchFailed:
		return "fetch_failed"
	case RowUnmodified:
		return "unmodified"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition follows s.
func (s RowState) Terminal() bool {
	switch s {
	case RowMerged, RowNoData, RowSkipped, RowUnmodified:
		return true
	}
	return false
}

// RunStatus is the final state of a whole run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusCompleted   RunStatus = "completed"
	StatusAborted     RunStatus = "aborted"
	StatusInterrupted RunStatus = "interrupted"
)

// RowResult is the outcome of one input row.
type RowResult struct {
	Index    int           `json:"index"`
	URL      string        `json:"url"`
	State    RowState      `json:"state"`
	Fields   int           `json:"fields"`
	Code     string        `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
	Artifact string        `json:"artifact,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Progress is a point-in-time view of a run, safe to hand to other goroutines.
type Progress struct {
	Status     RunStatus `json:"status"`
	Input      string    `json:"input"`
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	Merged     int       `json:"merged"`
	NoData     int       `json:"no_data"`
	Unmodified int       `json:"unmodified"`
	Skipped    int       `json:"skipped"`
	Columns    int       `json:"columns"`
	CurrentURL string    `json:"current_url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// count folds one terminal row into the tallies.
func (p *Progress) count(r RowResult) {
	p.Done++
	switch r.State {
	case RowMerged:
		p.Merged++
	case RowNoData:
		p.NoData++
	case RowSkipped:
		p.Skipped++
	default:
		p.Unmodified++
	}
}
