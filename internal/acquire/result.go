package acquire

import (
	"context"

	"github.com/samvad-hq/pubsync/internal/domain"
)

// Status classifies the outcome of a single source attempt.
type Status int

const (
	StatusEmpty Status = iota
	StatusRecords
	StatusUnavailable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRecords:
		return "records"
	case StatusEmpty:
		return "empty"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what every source returns instead of raising.
type Result struct {
	Source  string
	Status  Status
	Records []domain.Publication
	Err     error
}

// Source produces publication records from one external system.
type Source interface {
	Name() string
	Fetch(ctx context.Context) Result
}

// Records builds a Result from recs, downgrading to StatusEmpty when there are none.
func Records(source string, recs []domain.Publication) Result {
	if len(recs) == 0 {
		return Result{Source: source, Status: StatusEmpty}
	}
	return Result{Source: source, Status: StatusRecords, Records: recs}
}

// Unavailable reports that the source cannot run in this environment.
func Unavailable(source string, err error) Result {
	return Result{Source: source, Status: StatusUnavailable, Err: err}
}

// Failed reports that the source ran and errored.
func Failed(source string, err error) Result {
	return Result{Source: source, Status: StatusFailed, Err: err}
}

// HasRecords reports whether r carries at least one record.
func (r Result) HasRecords() bool {
	return r.Status == StatusRecords && len(r.Records) > 0
}
