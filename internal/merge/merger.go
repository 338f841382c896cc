// Package merge rewrites the publications section of a page in place.
package merge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/enrich"
	"github.com/samvad-hq/pubsync/internal/logger"
)

// DefaultCapacity is the number of items kept on the page.
const DefaultCapacity = 10

// ErrSectionNotFound is returned when the document has no publications section.
var ErrSectionNotFound = errors.New(`publications section not found in document`)

// AnchorKind tells where new items were inserted.
type AnchorKind int

const (
	AnchorSentinel AnchorKind = iota + 1
	AnchorSectionEnd
)

func (a AnchorKind) String() string {
	switch a {
	case AnchorSentinel:
		return "sentinel_paragraph"
	case AnchorSectionEnd:
		return "section_end"
	default:
		return "none"
	}
}

// Result describes one merge.
type Result struct {
	Removed  []string
	Rendered []domain.Publication
	Anchor   AnchorKind
}

// Merger replaces the publication items of a document.
type Merger struct {
	Table enrich.Table
	Now   func() time.Time
	Log   logger.Logger
}

// New returns a Merger using table for impact factors.
func New(table enrich.Table, log logger.Logger) *Merger {
	return &Merger{Table: table, Now: time.Now, Log: log}
}

// Merge rewrites the document at path with the top capacity records.
func (m *Merger) Merge(path string, records []domain.Publication, capacity int) (Result, error) {
	log := logger.Ensure(m.Log)

	res, err := m.merge(path, records, capacity)
	if err != nil {
		log.ErrorObj("document merge failed", "merge_error", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return Result{}, err
	}

	log.InfoObj("document merged", "merge_result", map[string]any{
		"path":     path,
		"removed":  len(res.Removed),
		"rendered": len(res.Rendered),
		"anchor":   res.Anchor.String(),
	})
	return res, nil
}

func (m *Merger) merge(path string, records []domain.Publication, capacity int) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}

	out, res, err := m.Render(src, records, capacity)
	if err != nil {
		return Result{}, err
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return Result{}, fmt.Errorf("write document: %w", err)
	}
	return res, nil
}

// Render returns src with the publication items replaced. Bytes outside the
// removed items and the inserted block are left untouched.
func (m *Merger) Render(src []byte, records []domain.Publication, capacity int) ([]byte, Result, error) {
	l, err := locate(src)
	if err != nil {
		return nil, Result{}, err
	}

	removed, err := existingTitles(src)
	if err != nil {
		return nil, Result{}, err
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	top := order(records)
	if len(top) > capacity {
		top = top[:capacity]
	}

	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	table := m.Table
	if table == nil {
		table = enrich.DefaultTable()
	}

	var (
		fragments []string
		rendered  []domain.Publication
	)
	for _, p := range top {
		frag, ok := renderItem(p, table, now)
		if !ok {
			continue
		}
		fragments = append(fragments, frag)
		rendered = append(rendered, p)
	}

	anchor, kind := l.anchor()
	out := splice(src, l.items, anchor, fragments)
	return out, Result{Removed: removed, Rendered: rendered, Anchor: kind}, nil
}

// splice drops items from src and inserts fragments at anchor.
func splice(src []byte, items []span, anchor int, fragments []string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(src))

	cursor := 0
	at := -1
	for _, it := range items {
		it = wholeLine(src, it)
		if at < 0 && anchor <= it.start {
			at = buf.Len() + anchor - cursor
		}
		buf.Write(src[cursor:it.start])
		cursor = it.end
	}
	if at < 0 {
		at = buf.Len() + anchor - cursor
	}
	buf.Write(src[cursor:])

	mid := buf.Bytes()
	if len(fragments) == 0 {
		return mid
	}

	eol := lineEnding(mid, at)
	block := strings.Join(fragments, "\n") + "\n"
	if eol != "\n" {
		block = strings.ReplaceAll(block, "\n", eol)
	}
	ls := at
	for ls > 0 && isBlank(mid[ls-1]) {
		ls--
	}
	if ls > 0 && mid[ls-1] != '\n' {
		ls = at
		block = eol + block
	}

	out := make([]byte, 0, len(mid)+len(block))
	out = append(out, mid[:ls]...)
	out = append(out, block...)
	out = append(out, mid[ls:]...)
	return out
}

// lineEnding reports the line break of the document around offset at.
func lineEnding(src []byte, at int) string {
	if i := bytes.IndexByte(src[at:], '\n'); i >= 0 {
		if at+i > 0 && src[at+i-1] == '\r' {
			return "\r\n"
		}
		return "\n"
	}
	if i := bytes.LastIndexByte(src[:at], '\n'); i > 0 && src[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// existingTitles lists the titles of the items currently in the section.
func existingTitles(src []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	var titles []string
	doc.Find("section#" + sectionID).First().Find("div." + itemClass).Each(func(_ int, item *goquery.Selection) {
		title := strings.Join(strings.Fields(item.Find("div.publication-title").First().Text()), " ")
		if title != "" {
			titles = append(titles, title)
		}
	})
	return titles, nil
}
