package ingest

import (
	"github.com/rs/zerolog"
)

// LogReporter writes a progress line per saved record and a warning per skipped line.
type LogReporter struct {
	log zerolog.Logger
}

func NewLogReporter(l zerolog.Logger) *LogReporter {
	return &LogReporter{log: l}
}

func (r *LogReporter) Report(res LineResult) {
	if res.Outcome == Skipped {
		r.log.Warn().
			Str("pass", string(res.Kind)).
			Int("line", res.Line).
			Str("id", res.ID).
			Err(res.Err).
			Msg("skipped line")
		return
	}

	label := "name"
	msg := "saved author"
	if res.Kind == KindWorks {
		label = "title"
		msg = "saved book"
	}
	r.log.Info().
		Int("line", res.Line).
		Str("id", res.ID).
		Str(label, res.Label).
		Msg(msg)
}

// Tally counts results and keeps the first few failures for a summary.
type Tally struct {
	Saved    int
	Skipped  int
	Failures []LineResult
	Keep     int
	next     Reporter
}

// NewTally wraps next, keeping up to keep failures.
func NewTally(next Reporter, keep int) *Tally {
	return &Tally{Keep: keep, next: next}
}

func (t *Tally) Report(res LineResult) {
	if res.Outcome == Saved {
		t.Saved++
	} else {
		t.Skipped++
		if len(t.Failures) < t.Keep {
			t.Failures = append(t.Failures, res)
		}
	}
	if t.next != nil {
		t.next.Report(res)
	}
}
