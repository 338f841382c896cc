package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samvad-hq/pubsync/internal/acquire"
	"github.com/samvad-hq/pubsync/internal/config"
	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/enrich"
	"github.com/samvad-hq/pubsync/internal/logger"
	"github.com/samvad-hq/pubsync/internal/merge"
	"github.com/samvad-hq/pubsync/internal/storage"
	"github.com/samvad-hq/pubsync/pkg/httpclient"
	"github.com/samvad-hq/pubsync/pkg/publishers"
	"github.com/samvad-hq/pubsync/pkg/sources"
)

// ErrDocumentMissing is returned when the target page does not exist.
var ErrDocumentMissing = errors.New("document not found")

// Acquirer produces the publication records for one run.
type Acquirer interface {
	AcquireWithRemedy(ctx context.Context) ([]domain.Publication, error)
	Source() string
}

// DocumentMerger writes records into the page.
type DocumentMerger interface {
	Merge(path string, records []domain.Publication, capacity int) (merge.Result, error)
	Render(src []byte, records []domain.Publication, capacity int) ([]byte, merge.Result, error)
}

// Announcer delivers announcement events downstream.
type Announcer interface {
	Announce(ctx context.Context, events []publishers.Event) (int, error)
	Size() int
	Close() error
}

// observable is implemented by acquirers that report the retry path while it
// runs. The coordinator does.
type observable interface {
	Observe(o acquire.Observer)
}

// Deps are the collaborators of an Updater.
type Deps struct {
	Acquirer  Acquirer
	Merger    DocumentMerger
	Store     storage.Store
	Announcer Announcer
}

// Summary reports what one run did.
type Summary struct {
	Source    string
	Fetched   int
	Removed   int
	Rendered  int
	New       int
	Announced int
	DryRun    bool
}

// Updater runs a single acquisition and page update.
type Updater struct {
	cfg  *config.Config
	deps Deps
	out  io.Writer
	log  logger.Logger
}

// New assembles an Updater from explicit collaborators. The console report is
// written to out.
func New(cfg *config.Config, deps Deps, out io.Writer, log logger.Logger) *Updater {
	if out == nil {
		out = io.Discard
	}
	if deps.Store == nil {
		deps.Store, _ = storage.NewStore(storage.TypeNone, "", storage.Options{})
	}
	if deps.Announcer == nil {
		deps.Announcer = publishers.NewFanout(nil)
	}
	return &Updater{cfg: cfg, deps: deps, out: out, log: logger.Ensure(log)}
}

// Build wires the production collaborators described by cfg.
func Build(ctx context.Context, cfg *config.Config, out io.Writer, log logger.Logger) (*Updater, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	client := httpclient.NewRestyClient(cfg.RequestTimeout)
	structured, remedy, err := sources.BuildStructured(sources.LookupConfig{
		Backend:             cfg.LookupBackend,
		ScholarUserID:       cfg.ScholarUserID,
		PythonBin:           cfg.PythonBin,
		Timeout:             cfg.LookupTimeout,
		Limit:               cfg.LookupLimit,
		S2AuthorID:          cfg.S2AuthorID,
		S2APIKey:            cfg.S2APIKey,
		S2BaseURL:           cfg.S2BaseURL,
		S2RequestsPerSecond: cfg.S2RequestsPerSecond,
		HTTPTimeout:         cfg.RequestTimeout,
	}, client, log)
	if err != nil {
		return nil, fmt.Errorf("build structured source: %w", err)
	}
	scraper := sources.NewScholarScraper(client, sources.ScraperConfig{
		ProfileURL: cfg.ScholarURL,
		BaseURL:    cfg.ScholarBaseURL,
		Delay:      cfg.ScrapeDelay,
	}, log)
	coordinator := acquire.NewCoordinator(structured, scraper, remedy, log)
	log.InfoObj("sources configured", "sources_meta", map[string]any{
		"structured": structured.Name(),
		"scraper":    scraper.Name(),
		"remedy":     remedy != nil,
	})

	table, err := enrich.LoadTable(cfg.ImpactFactorsFile)
	if err != nil {
		return nil, fmt.Errorf("load impact factors: %w", err)
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	storageType := cfg.StorageType
	if err != nil {
		log.WarnObj("history store unavailable; continuing without history", "storage_error", map[string]any{
			"type":  cfg.StorageType,
			"path":  cfg.BBoltPath,
			"error": err.Error(),
		})
		storageType = storage.TypeNone
		store, _ = storage.NewStore(storage.TypeNone, "", storage.Options{})
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     storageType,
		"path":                     cfg.BBoltPath,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return New(cfg, Deps{
		Acquirer:  coordinator,
		Merger:    merge.New(table, log),
		Store:     store,
		Announcer: fanout,
	}, out, log), nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}
	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Run performs one update. The returned error maps to the process status
// through ExitCode.
func (u *Updater) Run(ctx context.Context) (Summary, error) {
	if u == nil || u.cfg == nil || u.deps.Acquirer == nil || u.deps.Merger == nil {
		return Summary{}, fmt.Errorf("updater is not initialized")
	}
	r := report{w: u.out}
	sum := Summary{DryRun: u.cfg.DryRun}

	r.banner(u.cfg.ScholarUserID, u.cfg.ScholarURL)

	observed := false
	if o, ok := u.deps.Acquirer.(observable); ok {
		o.Observe(r)
		observed = true
	}

	records, err := u.deps.Acquirer.AcquireWithRemedy(ctx)
	if err != nil {
		if !observed {
			r.noRecords()
		}
		u.log.ErrorObj("acquisition failed", "acquire_error", map[string]any{"error": err.Error()})
		return sum, err
	}
	sum.Source = u.deps.Acquirer.Source()
	sum.Fetched = len(records)
	r.found(records)

	path := u.cfg.DocumentPath
	if _, err := os.Stat(path); err != nil {
		r.documentMissing(path)
		return sum, fmt.Errorf("%w: %s", ErrDocumentMissing, path)
	}

	r.updating(path)
	res, err := u.apply(path, records)
	if err != nil {
		r.mergeFailed()
		return sum, fmt.Errorf("update document: %w", err)
	}
	sum.Removed = len(res.Removed)
	sum.Rendered = len(res.Rendered)

	sum.New, sum.Announced = u.recordHistory(ctx, sum.Source, res.Rendered)

	r.success(path, sum)
	u.log.InfoObj("update completed", "update_summary", map[string]any{
		"source":    sum.Source,
		"fetched":   sum.Fetched,
		"removed":   sum.Removed,
		"rendered":  sum.Rendered,
		"new":       sum.New,
		"announced": sum.Announced,
		"dry_run":   sum.DryRun,
	})
	return sum, nil
}

func (u *Updater) apply(path string, records []domain.Publication) (merge.Result, error) {
	if !u.cfg.DryRun {
		return u.deps.Merger.Merge(path, records, u.cfg.MaxPublications)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return merge.Result{}, fmt.Errorf("read document: %w", err)
	}
	_, res, err := u.deps.Merger.Render(src, records, u.cfg.MaxPublications)
	return res, err
}

// recordHistory counts rendered publications no earlier run has put on the
// page and, outside dry runs, marks them and announces the new ones. Failures
// are logged and never fail the run.
func (u *Updater) recordHistory(ctx context.Context, source string, rendered []domain.Publication) (int, int) {
	var events []publishers.Event
	for _, p := range rendered {
		key := p.Key()
		seen, err := u.deps.Store.SeenPublication(key)
		if err != nil {
			u.log.WarnObj("history lookup failed", "storage_error", map[string]any{"key": key, "error": err.Error()})
			continue
		}
		if !seen {
			link, _ := enrich.CanonicalLink(p)
			events = append(events, publishers.NewEvent(source, p, link.URL))
		}
		if u.cfg.DryRun {
			continue
		}
		if err := u.deps.Store.MarkPublication(key); err != nil {
			u.log.WarnObj("history update failed", "storage_error", map[string]any{"key": key, "error": err.Error()})
		}
	}

	if u.cfg.DryRun || len(events) == 0 || u.deps.Announcer.Size() == 0 {
		return len(events), 0
	}
	delivered, err := u.deps.Announcer.Announce(ctx, events)
	if err != nil {
		u.log.WarnObj("announcement failed", "publisher_error", map[string]any{
			"events":    len(events),
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
	return len(events), delivered
}

// Close releases the store and the publishers.
func (u *Updater) Close() error {
	if u == nil {
		return nil
	}
	var errs []error
	if u.deps.Store != nil {
		if err := u.deps.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if u.deps.Announcer != nil {
		if err := u.deps.Announcer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExitCode maps the result of Run to the process status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
