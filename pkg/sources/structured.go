package sources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/pubsync/internal/acquire"
	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/logger"
	"github.com/samvad-hq/pubsync/pkg/httpclient"
)

// ErrLookupUnavailable marks a structured backend that cannot run here
// (missing interpreter, missing module, no author id).
var ErrLookupUnavailable = errors.New("structured lookup unavailable")

const (
	BackendScholarly       = "scholarly"
	BackendSemanticScholar = "semanticscholar"
	BackendNone            = "none"

	defaultLookupLimit = 20
)

// LookupBib is the bibliographic part of a structured reply.
type LookupBib struct {
	Title   string   `json:"title"`
	Authors []string `json:"author"`
	Venue   string   `json:"venue"`
	PubYear string   `json:"pub_year"`
}

// LookupEntry is one publication as returned by a structured backend.
// A non-empty Error marks an entry the backend failed to fill.
type LookupEntry struct {
	Bib          LookupBib `json:"bib"`
	PubURL       string    `json:"pub_url"`
	NumCitations int       `json:"num_citations"`
	Error        string    `json:"error,omitempty"`
}

// Lookup queries a structured provider by author id.
type Lookup interface {
	Backend() string
	Lookup(ctx context.Context, authorID string, limit int) ([]LookupEntry, error)
}

// StructuredSource adapts a Lookup to acquire.Source.
type StructuredSource struct {
	lookup   Lookup
	authorID string
	limit    int
	log      logger.Logger
}

// NewStructuredSource builds the preferred record source.
func NewStructuredSource(lookup Lookup, authorID string, limit int, log logger.Logger) *StructuredSource {
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	return &StructuredSource{
		lookup:   lookup,
		authorID: strings.TrimSpace(authorID),
		limit:    limit,
		log:      logger.Ensure(log),
	}
}

func (s *StructuredSource) Name() string {
	if s.lookup == nil {
		return "structured"
	}
	return "structured:" + s.lookup.Backend()
}

// Fetch asks the backend for entries and admits every entry that has a title.
// Failed entries are skipped one by one.
func (s *StructuredSource) Fetch(ctx context.Context) acquire.Result {
	name := s.Name()
	if s.lookup == nil {
		return acquire.Unavailable(name, ErrLookupUnavailable)
	}

	entries, err := s.lookup.Lookup(ctx, s.authorID, s.limit)
	if err != nil {
		if errors.Is(err, ErrLookupUnavailable) {
			return acquire.Unavailable(name, err)
		}
		return acquire.Failed(name, err)
	}
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}

	out := make([]domain.Publication, 0, len(entries))
	for i, e := range entries {
		if e.Error != "" {
			s.log.WarnObj("structured entry skipped", "lookup_entry_error", map[string]any{
				"backend": s.lookup.Backend(),
				"index":   i,
				"error":   e.Error,
			})
			continue
		}
		pub, err := entryToPublication(e)
		if err != nil {
			s.log.DebugObj("structured entry rejected", "lookup_entry_error", map[string]any{
				"backend": s.lookup.Backend(),
				"index":   i,
				"error":   err.Error(),
			})
			continue
		}
		out = append(out, pub)
	}
	return acquire.Records(name, out)
}

func entryToPublication(e LookupEntry) (domain.Publication, error) {
	authors := make([]string, 0, len(e.Bib.Authors))
	for _, a := range e.Bib.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	cites := e.NumCitations
	if cites < 0 {
		cites = 0
	}
	return domain.NewPublication(domain.PublicationFields{
		Title:     e.Bib.Title,
		Authors:   strings.Join(authors, ", "),
		Venue:     e.Bib.Venue,
		Year:      e.Bib.PubYear,
		Citations: strconv.Itoa(cites),
		URL:       e.PubURL,
	})
}

// LookupConfig selects and configures the structured backend.
type LookupConfig struct {
	Backend             string
	ScholarUserID       string
	PythonBin           string
	Timeout             time.Duration
	Limit               int
	S2AuthorID          string
	S2APIKey            string
	S2BaseURL           string
	S2RequestsPerSecond float64
	HTTPTimeout         time.Duration
}

// BuildStructured returns the structured source for cfg together with the
// remedy to apply when a whole acquisition round comes back empty. Backends
// with nothing to install return a nil remedy.
func BuildStructured(cfg LookupConfig, client httpclient.Client, log logger.Logger) (*StructuredSource, acquire.Remedy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendScholarly, "":
		lookup := NewScholarlyLookup(cfg.PythonBin, cfg.Timeout, nil)
		return NewStructuredSource(lookup, cfg.ScholarUserID, cfg.Limit, log), NewScholarlyInstaller(cfg.PythonBin, nil, log), nil
	case BackendSemanticScholar:
		if client == nil {
			client = httpclient.NewRestyClient(cfg.HTTPTimeout)
		}
		lookup := NewSemanticScholarLookup(client, cfg.S2BaseURL, cfg.S2APIKey, cfg.S2RequestsPerSecond)
		return NewStructuredSource(lookup, cfg.S2AuthorID, cfg.Limit, log), nil, nil
	case BackendNone:
		return NewStructuredSource(nil, "", cfg.Limit, log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lookup backend %q", cfg.Backend)
	}
}
