package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/samvad-hq/pubsync/internal/domain"
)

const (
	sampleSize     = 3
	sampleTitleLen = 60
)

// report writes the human-readable run log.
type report struct {
	w io.Writer
}

func (r report) line(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r report) banner(userID, url string) {
	rule := strings.Repeat("=", 60)
	r.line("%s", rule)
	r.line("Google Scholar Publication Auto-Updater")
	r.line("%s", rule)
	r.line("Fetching publications for user: %s", userID)
	r.line("URL: %s", url)
	r.line("")
}

func (r report) noRecords() {
	r.line("ERROR: No publications found or error occurred")
	r.line("This could be due to:")
	r.line("1. Google Scholar blocking the request")
	r.line("2. Network issues")
	r.line("3. Changes in Google Scholar's HTML structure")
}

// RoundEmpty, RemedyStarted and RemedyFinished let the report follow the
// coordinator's retry path as it happens.
func (r report) RoundEmpty() { r.noRecords() }

func (r report) RemedyStarted() {
	r.line("")
	r.line("Trying to install scholarly library for better results...")
}

func (r report) RemedyFinished(err error) {
	if err != nil {
		r.line("Could not install scholarly library automatically")
		return
	}
	r.line("Installed scholarly library, retrying...")
}

func (r report) found(records []domain.Publication) {
	r.line("✓ Found %d publications", len(records))
	r.line("")
	r.line("Sample publications:")
	for i, p := range records {
		if i == sampleSize {
			break
		}
		year := p.Year
		if year == "" {
			year = "N/A"
		}
		r.line("  %d. %s... (%s)", i+1, truncate(p.Title, sampleTitleLen), year)
	}
}

func (r report) documentMissing(path string) {
	r.line("ERROR: %s not found in current directory", path)
}

func (r report) updating(path string) {
	r.line("")
	r.line("Updating %s...", path)
}

func (r report) mergeFailed() {
	r.line("ERROR: Failed to update HTML file")
}

func (r report) success(path string, sum Summary) {
	if sum.DryRun {
		r.line("✓ Dry run: %s left unchanged", path)
		r.line("  Would add/update %d publications", sum.Rendered)
	} else {
		r.line("✓ Successfully updated %s", path)
		r.line("  Added/updated %d publications", sum.Rendered)
	}
	r.line("  New since last run: %d", sum.New)
	if sum.Announced > 0 {
		r.line("  Announcements delivered: %d", sum.Announced)
	}
}

// truncate cuts s to n characters.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
