package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/logger"
)

// ErrNoRecords is returned when every source came back empty, even after the remedy.
var ErrNoRecords = errors.New("no publications found")

// Remedy performs a one-time fix that may make the structured source available.
type Remedy interface {
	Apply(ctx context.Context) error
}

// RemedyFunc adapts a function to Remedy.
type RemedyFunc func(ctx context.Context) error

func (f RemedyFunc) Apply(ctx context.Context) error { return f(ctx) }

// Observer follows AcquireWithRemedy once the first round came back empty.
type Observer interface {
	RoundEmpty()
	RemedyStarted()
	RemedyFinished(err error)
}

type nopObserver struct{}

func (nopObserver) RoundEmpty()          {}
func (nopObserver) RemedyStarted()       {}
func (nopObserver) RemedyFinished(error) {}

// Coordinator tries the structured lookup first and falls back to the scraper.
type Coordinator struct {
	lookup  Source
	scraper Source
	remedy  Remedy
	obs     Observer
	log     logger.Logger
	winner  string
}

// NewCoordinator wires the two sources. Either may be nil; remedy may be nil.
func NewCoordinator(lookup, scraper Source, remedy Remedy, log logger.Logger) *Coordinator {
	return &Coordinator{
		lookup:  lookup,
		scraper: scraper,
		remedy:  remedy,
		obs:     nopObserver{},
		log:     logger.Ensure(log),
	}
}

// Observe registers o for the empty-round and remedy notifications.
func (c *Coordinator) Observe(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.obs = o
}

// Acquire runs one round: structured lookup, then the scraper if the lookup
// produced nothing. Records are never merged across sources.
func (c *Coordinator) Acquire(ctx context.Context) []domain.Publication {
	c.winner = ""
	for _, src := range []Source{c.lookup, c.scraper} {
		if res, ok := c.try(ctx, src); ok {
			c.winner = res.Source
			return res.Records
		}
	}
	return nil
}

// Source names the source that produced the records of the last round, or ""
// when the round came back empty.
func (c *Coordinator) Source() string {
	return c.winner
}

// AcquireWithRemedy runs Acquire, and when nothing was found applies the remedy
// once and runs Acquire exactly one more time.
func (c *Coordinator) AcquireWithRemedy(ctx context.Context) ([]domain.Publication, error) {
	if recs := c.Acquire(ctx); len(recs) > 0 {
		return recs, nil
	}

	c.obs.RoundEmpty()
	if c.remedy != nil {
		c.log.WarnObj("no publications found; applying remedy before retry", "remedy", map[string]any{
			"attempt": 1,
		})
		c.obs.RemedyStarted()
		err := c.remedy.Apply(ctx)
		c.obs.RemedyFinished(err)
		if err != nil {
			c.log.WarnObj("remedy failed", "remedy", map[string]any{"error": err.Error()})
		} else {
			c.log.InfoObj("remedy applied, retrying", "remedy", map[string]any{"attempt": 1})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRecords, err)
	}
	if recs := c.Acquire(ctx); len(recs) > 0 {
		return recs, nil
	}
	return nil, ErrNoRecords
}

func (c *Coordinator) try(ctx context.Context, src Source) (Result, bool) {
	if src == nil {
		return Result{}, false
	}
	if ctx.Err() != nil {
		return Result{}, false
	}

	res := src.Fetch(ctx)
	if res.Source == "" {
		res.Source = src.Name()
	}

	meta := map[string]any{
		"source": res.Source,
		"status": res.Status.String(),
		"count":  len(res.Records),
	}
	if res.Err != nil {
		meta["error"] = res.Err.Error()
	}

	switch res.Status {
	case StatusFailed:
		c.log.WarnObj("source failed", "source_result", meta)
	case StatusUnavailable:
		c.log.InfoObj("source unavailable", "source_result", meta)
	default:
		c.log.InfoObj("source finished", "source_result", meta)
	}

	return res, res.HasRecords()
}
