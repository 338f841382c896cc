package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const (
	sectionID = "publications"
	itemClass = "publication-item"
)

// sentinelPhrases mark the paragraph new items are inserted in front of.
var sentinelPhrases = []string{"View Complete Publication List", "Google Scholar"}

type span struct {
	start, end int
}

// layout holds raw byte offsets into the source document.
type layout struct {
	items      []span
	sentinel   int
	sectionEnd int
}

// anchor returns the insertion offset and how it was chosen.
func (l layout) anchor() (int, AnchorKind) {
	if l.sentinel >= 0 {
		return l.sentinel, AnchorSentinel
	}
	return l.sectionEnd, AnchorSectionEnd
}

// locate walks the raw token stream of src and records where the publications
// section, its items and its sentinel paragraph sit. Offsets are exact because
// the tokenizer's raw token bytes concatenate back to the input.
func locate(src []byte) (layout, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	l := layout{sentinel: -1, sectionEnd: -1}

	var (
		pos          int
		found        bool
		sectionDepth int
		itemStart    = -1
		itemDepth    int
		pStart       = -1
		pText        strings.Builder
	)

	closeParagraph := func() {
		if pStart >= 0 && l.sentinel < 0 && hasSentinel(pText.String()) {
			l.sentinel = pStart
		}
		pStart = -1
		pText.Reset()
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return layout{}, fmt.Errorf("tokenize document: %w", z.Err())
		}
		start := pos
		pos += len(z.Raw())
		tok := z.Token()

		if !found {
			if tt == html.StartTagToken && tok.Data == "section" && attr(tok, "id") == sectionID {
				found = true
				sectionDepth = 1
			}
			continue
		}

		if itemStart >= 0 {
			switch {
			case tt == html.StartTagToken && tok.Data == "div":
				itemDepth++
			case tt == html.EndTagToken && tok.Data == "div":
				itemDepth--
				if itemDepth == 0 {
					l.items = append(l.items, span{start: itemStart, end: pos})
					itemStart = -1
				}
			case tt == html.EndTagToken && tok.Data == "section" && sectionDepth == 1:
				l.items = append(l.items, span{start: itemStart, end: start})
				itemStart = -1
				closeParagraph()
				l.sectionEnd = start
				return l, nil
			}
			continue
		}

		switch tt {
		case html.StartTagToken:
			switch tok.Data {
			case "div":
				if hasClass(tok, itemClass) {
					itemStart = start
					itemDepth = 1
				}
			case "p":
				closeParagraph()
				pStart = start
			case "section":
				sectionDepth++
			}
		case html.EndTagToken:
			switch tok.Data {
			case "p":
				closeParagraph()
			case "section":
				sectionDepth--
				if sectionDepth == 0 {
					closeParagraph()
					l.sectionEnd = start
					return l, nil
				}
			}
		case html.TextToken:
			if pStart >= 0 {
				pText.WriteString(tok.Data)
			}
		}
	}

	if !found {
		return layout{}, ErrSectionNotFound
	}
	// Unterminated section runs to the end of the document.
	if itemStart >= 0 {
		l.items = append(l.items, span{start: itemStart, end: len(src)})
	}
	closeParagraph()
	l.sectionEnd = len(src)
	return l, nil
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(tok html.Token, class string) bool {
	for _, c := range strings.Fields(attr(tok, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasSentinel(text string) bool {
	for _, phrase := range sentinelPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// wholeLine widens s to cover its indentation and line break when the range
// is alone on its lines.
func wholeLine(src []byte, s span) span {
	ls := s.start
	for ls > 0 && isBlank(src[ls-1]) {
		ls--
	}
	if ls > 0 && src[ls-1] != '\n' {
		return s
	}
	le := s.end
	for le < len(src) && (isBlank(src[le]) || src[le] == '\r') {
		le++
	}
	if le < len(src) {
		if src[le] != '\n' {
			return s
		}
		le++
	}
	return span{start: ls, end: le}
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}
