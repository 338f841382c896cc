package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/pubsync/internal/acquire"
	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/logger"
	"github.com/samvad-hq/pubsync/pkg/httpclient"
)

const (
	ScraperName = "scholar_profile"

	maxHTMLBodyBytes = 4 << 20 // 4 MiB
)

var (
	errRowWithoutTitle = errors.New("row has no title link")

	venueYear = regexp.MustCompile(`\b(\d{4})\b`)
)

// ScraperConfig controls the profile page request.
type ScraperConfig struct {
	ProfileURL string
	BaseURL    string
	Delay      time.Duration
	Headers    map[string]string
}

// ScholarScraper reads publication rows straight from a public profile page.
type ScholarScraper struct {
	client httpclient.Client
	cfg    ScraperConfig
	log    logger.Logger
}

// NewScholarScraper constructs the scraper. A nil client gets a resty client
// with a 30 second timeout.
func NewScholarScraper(client httpclient.Client, cfg ScraperConfig, log logger.Logger) *ScholarScraper {
	if client == nil {
		client = httpclient.NewRestyClient(30*time.Second)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://scholar.google.com"
	}
	cfg.Headers = BrowserHeaders(cfg.Headers)
	return &ScholarScraper{client: client, cfg: cfg, log: logger.Ensure(log)}
}

func (s *ScholarScraper) Name() string { return ScraperName }

// Fetch waits the configured delay, issues a single GET and parses the rows.
func (s *ScholarScraper) Fetch(ctx context.Context) acquire.Result {
	if strings.TrimSpace(s.cfg.ProfileURL) == "" {
		return acquire.Failed(ScraperName, fmt.Errorf("profile url is empty"))
	}

	if s.cfg.Delay > 0 {
		timer := time.NewTimer(s.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return acquire.Failed(ScraperName, ctx.Err())
		case <-timer.C:
		}
	}

	resp, err := s.client.Get(ctx, s.cfg.ProfileURL, s.cfg.Headers)
	if err != nil {
		return acquire.Failed(ScraperName, fmt.Errorf("fetch scholar profile: %w", err))
	}
	body := resp.Body()
	if !httpclient.IsSuccess(resp) {
		return acquire.Failed(ScraperName, fmt.Errorf("scholar profile returned status %d body: %s", resp.StatusCode(), responseSnippet(body)))
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	recs, err := s.parseProfile(body)
	if err != nil {
		return acquire.Failed(ScraperName, err)
	}
	return acquire.Records(ScraperName, recs)
}

func (s *ScholarScraper) parseProfile(body []byte) ([]domain.Publication, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	rows, strategy := publicationRows.find(doc.Selection)
	s.log.DebugObj("publication rows located", "scrape_rows", map[string]any{
		"count":    rows.Length(),
		"strategy": strategy,
	})

	out := make([]domain.Publication, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		pub, err := parseRow(row, s.cfg.BaseURL)
		if err != nil {
			s.log.DebugObj("publication row skipped", "scrape_row_error", map[string]any{
				"row":   i,
				"error": err.Error(),
			})
			return
		}
		out = append(out, pub)
	})
	return out, nil
}

func parseRow(row *goquery.Selection, baseURL string) (domain.Publication, error) {
	links, _ := titleLinks.find(row)
	link := links.First()
	if link.Length() == 0 {
		return domain.Publication{}, errRowWithoutTitle
	}

	href, _ := link.Attr("href")
	fields := domain.PublicationFields{
		Title:     cleanText(link),
		URL:       resolveURL(strings.TrimSpace(href), baseURL),
		Citations: "0",
	}

	gray, _ := grayLines.find(row)
	if gray.Length() > 0 {
		fields.Authors = cleanText(gray.Eq(0))
	}
	if gray.Length() > 1 {
		fields.Venue, fields.Year = splitVenueYear(cleanText(gray.Eq(1)))
	}

	if years, _ := yearCells.find(row); years.Length() > 0 {
		if y := cleanText(years.First()); y != "" {
			fields.Year = y
		}
	}

	if cites, _ := citationLinks.find(row); cites.Length() > 0 {
		if c := cleanText(cites.First()); c != "" {
			fields.Citations = c
		}
	}

	pub, err := domain.NewPublication(fields)
	if err != nil {
		return domain.Publication{}, fmt.Errorf("build publication: %w", err)
	}
	return pub, nil
}

// splitVenueYear pulls the first standalone four-digit token out of a venue
// line and returns the remaining venue text with trailing commas trimmed.
func splitVenueYear(line string) (venue, year string) {
	m := venueYear.FindStringSubmatch(line)
	if m == nil {
		return line, ""
	}
	year = m[1]
	venue = strings.TrimSpace(strings.ReplaceAll(line, year, ""))
	venue = strings.TrimSpace(strings.TrimRight(venue, ","))
	return venue, year
}

func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// resolveURL turns ref into an absolute URL against base. Unparseable input is
// returned unchanged.
func resolveURL(ref, base string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
