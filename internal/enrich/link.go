// Package enrich derives display data for a publication: its canonical link
// and the impact factor of its venue.
package enrich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samvad-hq/pubsync/internal/domain"
)

// LinkKind tells how a link was derived.
type LinkKind int

const (
	LinkNone LinkKind = iota
	LinkDOI
	LinkScholar
)

// Label is the anchor text used when a link of this kind is rendered.
func (k LinkKind) Label() string {
	switch k {
	case LinkDOI:
		return "Read Paper"
	case LinkScholar:
		return "View on Google Scholar"
	default:
		return ""
	}
}

// Link is a resolved outbound link for a publication.
type Link struct {
	URL  string
	Kind LinkKind
}

var doiPattern = regexp.MustCompile(`10\.\d{4,}/[^\s)]+`)

// DOI returns the first DOI-shaped token in text with trailing ".,;" trimmed.
func DOI(text string) (string, bool) {
	m := doiPattern.FindString(text)
	if m == "" {
		return "", false
	}
	m = strings.TrimRight(m, ".,;")
	if m == "" {
		return "", false
	}
	return m, true
}

// CanonicalLink looks for a DOI in the URL, then in the title. Without one, a
// Google Scholar URL is used as the display link.
func CanonicalLink(p domain.Publication) (Link, bool) {
	for _, text := range []string{p.URL, p.Title} {
		if doi, ok := DOI(text); ok {
			return Link{URL: "https://doi.org/" + doi, Kind: LinkDOI}, true
		}
	}
	if isScholarURL(p.URL) {
		return Link{URL: p.URL, Kind: LinkScholar}, true
	}
	return Link{}, false
}

func isScholarURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(u.Hostname()), "scholar.google.")
}
