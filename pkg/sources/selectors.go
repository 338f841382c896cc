package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// matcher is one strategy for locating elements below a selection.
type matcher struct {
	name string
	find func(*goquery.Selection) *goquery.Selection
}

// chain tries matchers in order; the first non-empty match wins. When every
// matcher comes back empty the last (empty) selection is returned.
type chain []matcher

func (c chain) find(sel *goquery.Selection) (*goquery.Selection, string) {
	var last *goquery.Selection
	for _, m := range c {
		found := m.find(sel)
		if found.Length() > 0 {
			return found, m.name
		}
		last = found
	}
	if last == nil {
		return sel.Slice(0, 0), ""
	}
	return last, ""
}

func exactClass(tag, class string) matcher {
	css := tag + "." + class
	return matcher{
		name: css,
		find: func(sel *goquery.Selection) *goquery.Selection { return sel.Find(css) },
	}
}

func descendant(css string) matcher {
	return matcher{
		name: css,
		find: func(sel *goquery.Selection) *goquery.Selection { return sel.Find(css) },
	}
}

func classPattern(tag string, re *regexp.Regexp) matcher {
	return matcher{
		name: tag + "[class~=/" + re.String() + "/]",
		find: func(sel *goquery.Selection) *goquery.Selection {
			return sel.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
				cls, _ := s.Attr("class")
				for _, c := range strings.Fields(cls) {
					if re.MatchString(c) {
						return true
					}
				}
				return false
			})
		},
	}
}

func idPattern(tag string, re *regexp.Regexp) matcher {
	return matcher{
		name: tag + "[id=/" + re.String() + "/]",
		find: func(sel *goquery.Selection) *goquery.Selection {
			return sel.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
				id, ok := s.Attr("id")
				return ok && re.MatchString(id)
			})
		},
	}
}

var (
	rowPattern      = regexp.MustCompile(`gsc_a_tr`)
	titlePattern    = regexp.MustCompile(`gsc_a_at`)
	grayPattern     = regexp.MustCompile(`gs_gray`)
	yearPattern     = regexp.MustCompile(`gsc_a_y`)
	citationPattern = regexp.MustCompile(`gsc_a_c`)

	publicationRows = chain{
		exactClass("tr", "gsc_a_tr"),
		classPattern("tr", rowPattern),
		idPattern("tr", rowPattern),
	}
	titleLinks = chain{
		exactClass("a", "gsc_a_at"),
		classPattern("a", titlePattern),
	}
	grayLines = chain{
		exactClass("div", "gs_gray"),
		classPattern("div", grayPattern),
	}
	yearCells = chain{
		exactClass("span", "gsc_a_y"),
		classPattern("span", yearPattern),
		descendant("td.gsc_a_y"),
	}
	citationLinks = chain{
		exactClass("a", "gsc_a_c"),
		classPattern("a", citationPattern),
		descendant("td.gsc_a_c a"),
	}
)
