package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyTitle is returned when a record is built without a usable title.
var ErrEmptyTitle = errors.New("publication title is empty")

// Publication is a single bibliographic record as rendered on the page.
type Publication struct {
	Title     string `json:"title"`
	Authors   string `json:"authors"`
	Venue     string `json:"venue"`
	Year      string `json:"year"`
	Citations string `json:"citations"`
	URL       string `json:"url"`
}

// PublicationFields carries raw, unvalidated values from a record source.
type PublicationFields struct {
	Title     string
	Authors   string
	Venue     string
	Year      string
	Citations string
	URL       string
}

// NewPublication validates raw fields and returns a normalized record.
// Only the title is mandatory; every other field degrades to empty or "0".
func NewPublication(f PublicationFields) (Publication, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return Publication{}, ErrEmptyTitle
	}

	return Publication{
		Title:     title,
		Authors:   strings.TrimSpace(f.Authors),
		Venue:     strings.TrimSpace(f.Venue),
		Year:      normalizeYear(f.Year),
		Citations: normalizeCitations(f.Citations),
		URL:       strings.TrimSpace(f.URL),
	}, nil
}

// Key returns a stable identity derived from the case-folded title.
func (p Publication) Key() string {
	norm := strings.ToLower(strings.Join(strings.Fields(p.Title), " "))
	sum := sha1.Sum([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// YearValue returns the numeric year, or 0 when the year is missing.
func (p Publication) YearValue() int {
	if !isDigits(p.Year) {
		return 0
	}
	n, err := strconv.Atoi(p.Year)
	if err != nil {
		return 0
	}
	return n
}

func normalizeYear(raw string) string {
	y := strings.TrimSpace(raw)
	if len(y) != 4 || !isDigits(y) {
		return ""
	}
	return y
}

func normalizeCitations(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" || !isDigits(c) {
		return "0"
	}
	n, err := strconv.ParseUint(c, 10, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(n, 10)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
