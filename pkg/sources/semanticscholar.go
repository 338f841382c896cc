package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/samvad-hq/pubsync/pkg/httpclient"
)

const (
	defaultS2BaseURL = "https://api.semanticscholar.org/graph/v1"
	s2PaperFields    = "title,authors,venue,year,citationCount,externalIds,url"
	s2PageLimit      = 100
)

// SemanticScholarLookup reads an author's papers from the Semantic Scholar
// Graph API.
type SemanticScholarLookup struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewSemanticScholarLookup builds the lookup; rps bounds outgoing requests.
func NewSemanticScholarLookup(client httpclient.Client, baseURL, apiKey string, rps float64) *SemanticScholarLookup {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultS2BaseURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &SemanticScholarLookup{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (l *SemanticScholarLookup) Backend() string { return BackendSemanticScholar }

type s2PapersResponse struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	PaperID       string     `json:"paperId"`
	Title         string     `json:"title"`
	Venue         string     `json:"venue"`
	Year          int        `json:"year"`
	CitationCount int        `json:"citationCount"`
	URL           string     `json:"url"`
	Authors       []s2Author `json:"authors"`
	ExternalIDs   struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
}

type s2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// Lookup returns the limit most recent papers of authorID.
func (l *SemanticScholarLookup) Lookup(ctx context.Context, authorID string, limit int) ([]LookupEntry, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, fmt.Errorf("%w: semantic scholar author id is empty", ErrLookupUnavailable)
	}
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("fields", s2PaperFields)
	params.Set("limit", strconv.Itoa(s2PageLimit))
	reqURL := fmt.Sprintf("%s/author/%s/papers?%s", l.baseURL, url.PathEscape(authorID), params.Encode())

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "pubsync/1.0",
	}
	if l.apiKey != "" {
		headers["x-api-key"] = l.apiKey
	}

	resp, err := l.client.Get(ctx, reqURL, headers)
	if err != nil {
		return nil, fmt.Errorf("semantic scholar request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar returned status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var papers s2PapersResponse
	if err := json.Unmarshal(resp.Body(), &papers); err != nil {
		return nil, fmt.Errorf("decode semantic scholar response: %w", err)
	}

	sort.SliceStable(papers.Data, func(i, j int) bool {
		return papers.Data[i].Year > papers.Data[j].Year
	})
	if len(papers.Data) > limit {
		papers.Data = papers.Data[:limit]
	}

	entries := make([]LookupEntry, 0, len(papers.Data))
	for _, p := range papers.Data {
		entries = append(entries, s2PaperToEntry(p))
	}
	return entries, nil
}

func s2PaperToEntry(p s2Paper) LookupEntry {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.Name)
	}
	year := ""
	if p.Year > 0 {
		year = strconv.Itoa(p.Year)
	}
	link := p.URL
	if doi := strings.TrimSpace(p.ExternalIDs.DOI); doi != "" {
		link = "https://doi.org/" + doi
	}
	return LookupEntry{
		Bib: LookupBib{
			Title:   p.Title,
			Authors: authors,
			Venue:   p.Venue,
			PubYear: year,
		},
		PubURL:       link,
		NumCitations: p.CitationCount,
	}
}
