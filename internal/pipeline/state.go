// Package pipeline runs one load cycle: fetch every configured export,
// normalize, classify, resolve identities and aggregate.
//
// Every outcome is folded into a State. Nothing in a load cycle panics or
// returns a bare error to the UI.
package pipeline

import (
	"errors"
	"time"

	"github.com/abelbrown/mentions/internal/model"
	"github.com/abelbrown/mentions/internal/schema"
)

var (
	// ErrNoData means no payload could be fetched or none was usable.
	ErrNoData = errors.New("no data")

	// ErrCancelled means the load was abandoned before it finished.
	ErrCancelled = errors.New("load cancelled")
)

// Status is the coarse state shown by the UI.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// State is the result of a load cycle.
type State struct {
	Status Status
	Result *model.AggregateResult // set when Status is ready
	Err    error                  // set when Status is error
	Report Report
}

// Loading returns the state shown while a load is in flight.
func Loading(loadID uint64) State {
	return State{Status: StatusLoading, Report: Report{LoadID: loadID}}
}

// Message is the one-line text for the error view.
func (s State) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// NoData reports whether the state is the explicit "no data" error.
func (s State) NoData() bool {
	return s.Status == StatusError && errors.Is(s.Err, ErrNoData)
}

// SourceReport describes what happened to one configured source.
type SourceReport struct {
	Name          string
	Location      string
	Tier          model.Tier
	OK            bool
	Bytes         int
	HTTPStatus    int
	Dur           time.Duration
	Err           error // fetch, schema or conflict error
	Shape         schema.Shape
	Mentions      int
	Dropped       int
	Mismatches    int
	InvalidScores int
}

// Report collects the diagnostics of a load cycle.
type Report struct {
	LoadID     uint64
	Started    time.Time
	Finished   time.Time
	Kind       model.ResultKind
	Sources    []SourceReport
	Dropped    []*schema.MalformedRecordError
	Mismatches []schema.CountMismatch
	Mentions   int
}

// Fetched returns how many sources were retrieved.
func (r Report) Fetched() int {
	n := 0
	for _, s := range r.Sources {
		if s.OK {
			n++
		}
	}
	return n
}

// Warnings returns one line per source that failed or was rejected.
func (r Report) Warnings() []string {
	var out []string
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s.Name+": "+s.Err.Error())
		}
	}
	return out
}

// Duration is how long the cycle took.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
