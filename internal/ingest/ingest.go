package ingest

import (
	"time"
)

type Kind string

const (
	KindAuthors Kind = "authors"
	KindWorks   Kind = "works"
)

const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

type Config struct {
	Limit        int     // lines to read per pass; 0 reads the whole file
	WriteRate    float64 // saves per second; 0 disables throttling
	MaxLineBytes int
}

// Run is the bookkeeping record of one pass over one dump file.
type Run struct {
	ID           string
	Kind         Kind
	Path         string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string // RUNNING, COMPLETED, FAILED
	ConfigLimit  int
	LinesRead    int
	RecordsSaved int
	LinesSkipped int
	Error        string
}

func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type Outcome uint8

const (
	Saved Outcome = iota
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "saved"
}

// LineResult is what happened to one dump line.
type LineResult struct {
	Kind    Kind
	Line    int
	Outcome Outcome
	ID      string
	Label   string // author name or book title
	Err     error  // *LineParseError or *StoreError when Skipped
}

// Reporter receives every line result of a pass, in file order.
type Reporter interface {
	Report(res LineResult)
}

type ReporterFunc func(res LineResult)

func (f ReporterFunc) Report(res LineResult) {
	f(res)
}
