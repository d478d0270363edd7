package retrieval

import (
	"fmt"
	"strings"
)

const maxErrorsPerSource = 5

// SourceReport is what one source contributed to a run.
type SourceReport struct {
	Source        string
	Raw           int // posts returned, duplicates included
	Added         int // posts new to the corpus
	Queries       int
	Successes     int
	Errors        int
	ScopesPlanned int
	ScopesVisited int
	Skipped       string // set when the source was not queried at all
	Aborted       string // set when the circuit breaker gave up on it
	Cancelled     bool
	ErrorSamples  []string
}

func (r *SourceReport) RecordError(err error) {
	r.Errors++
	if len(r.ErrorSamples) < maxErrorsPerSource {
		r.ErrorSamples = append(r.ErrorSamples, err.Error())
	}
}

func (r SourceReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: +%d new", r.Source, r.Added)
	if r.Errors > 0 {
		fmt.Fprintf(&b, " (%d errors)", r.Errors)
	}
	switch {
	case r.Skipped != "":
		b.WriteString(" [skipped]")
	case r.Aborted != "":
		b.WriteString(" [aborted]")
	case r.Cancelled:
		b.WriteString(" [cancelled]")
	}
	return b.String()
}

type Diagnostics struct {
	Sources []SourceReport
}

// Summary renders one segment per source joined with " | ".
func (d Diagnostics) Summary() string {
	parts := make([]string, 0, len(d.Sources))
	for _, s := range d.Sources {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " | ")
}

// AllFailed reports whether no source completed a single successful query,
// which separates "nothing matched" from "nothing answered".
func (d Diagnostics) AllFailed() bool {
	for _, s := range d.Sources {
		if s.Successes > 0 {
			return false
		}
	}
	return true
}

// ErrorLines returns up to n lines describing why sources failed, all of
// them when n is not positive.
func (d Diagnostics) ErrorLines(n int) []string {
	var out []string
	for _, s := range d.Sources {
		if s.Skipped != "" {
			out = append(out, fmt.Sprintf("%s: %s", s.Source, s.Skipped))
		}
		for _, e := range s.ErrorSamples {
			out = append(out, fmt.Sprintf("%s: %s", s.Source, e))
		}
		if s.Aborted != "" {
			out = append(out, fmt.Sprintf("%s: %s", s.Source, s.Aborted))
		}
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (d Diagnostics) TotalAdded() int {
	n := 0
	for _, s := range d.Sources {
		n += s.Added
	}
	return n
}
