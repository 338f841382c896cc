package merge

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/pubsync/internal/domain"
	"github.com/samvad-hq/pubsync/internal/enrich"
)

const (
	itemIndent = "                "
	step       = "    "
)

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

func escape(s string) string {
	return markupEscaper.Replace(s)
}

// order sorts newest first; equal years fall back to the case-folded title.
func order(records []domain.Publication) []domain.Publication {
	out := make([]domain.Publication, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		yi, yj := out[i].YearValue(), out[j].YearValue()
		if yi != yj {
			return yi > yj
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}

// journalLine joins venue and year and appends the impact factor when known.
func journalLine(p domain.Publication, table enrich.Table, now time.Time) string {
	year := strings.TrimSpace(p.Year)
	if year == "" {
		year = strconv.Itoa(now.Year())
	}
	venue := strings.TrimSpace(p.Venue)

	display := year
	if venue != "" {
		display = venue + ", " + year
	}
	line := escape(display)
	if v, ok := table.ImpactFactor(venue); ok {
		line += " (IF = " + enrich.FormatImpactFactor(v) + ")"
	}
	return line
}

// renderItem returns the markup for one publication, or false when the title
// is blank.
func renderItem(p domain.Publication, table enrich.Table, now time.Time) (string, bool) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return "", false
	}

	var b strings.Builder
	b.WriteString(itemIndent + `<div class="publication-item">` + "\n")
	b.WriteString(itemIndent + step + `<div class="publication-title">` + escape(title) + "</div>\n")
	b.WriteString(itemIndent + step + `<div class="publication-journal">` + journalLine(p, table, now) + "</div>\n")
	b.WriteString(itemIndent + step + `<div class="publication-links">` + "\n")
	if link, ok := enrich.CanonicalLink(p); ok {
		b.WriteString(itemIndent + step + step + `<a href="` + escape(link.URL) + `">` + link.Kind.Label() + "</a>\n")
	}
	b.WriteString(itemIndent + step + "</div>\n")
	b.WriteString(itemIndent + "</div>")
	return b.String(), true
}
