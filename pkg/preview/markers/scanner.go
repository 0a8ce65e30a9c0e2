// Package markers locates blocks in rendered preview pages.
//
// The renderer emits one invisible marker element per block, in
// flattened block order, painted with a reserved fill. The last page
// holding any marker carries one extra sentinel marker for the end of
// the document.
package markers

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// DefaultFill is the reserved, fully transparent marker paint.
const DefaultFill = "#fefefe00"

// Page is the markup of one rendered page, usually SVG.
type Page string

// ReadPage checks that data is textual markup and returns it as a page.
// Binary content, such as a rasterized page, is rejected.
func ReadPage(data []byte) (Page, error) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return Page(data), nil
		}
	}
	return "", errors.Errorf("unsupported page content %s", detected.String())
}

// Scanner counts marker elements in page markup.
type Scanner struct {
	// Fill is the marker paint. Empty means DefaultFill.
	Fill string
}

func (s Scanner) fill() string {
	if s.Fill == "" {
		return DefaultFill
	}
	return strings.ToLower(s.Fill)
}

// Count returns the number of marker elements on the page. An element
// is a marker if its fill attribute, or the fill declaration of its
// style attribute, equals the marker paint.
func (s Scanner) Count(page Page) int {
	fill := s.fill()
	tokenizer := html.NewTokenizer(strings.NewReader(string(page)))
	count := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or truncated markup; either way the count so far stands.
			return count
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if isMarker(token.Attr, fill) {
				count++
			}
		}
	}
}

func isMarker(attrs []html.Attribute, fill string) bool {
	for _, attr := range attrs {
		switch attr.Key {
		case "fill":
			if strings.EqualFold(strings.TrimSpace(attr.Val), fill) {
				return true
			}
		case "style":
			for _, decl := range strings.Split(attr.Val, ";") {
				name, value, ok := strings.Cut(decl, ":")
				if ok && strings.TrimSpace(name) == "fill" && strings.EqualFold(strings.TrimSpace(value), fill) {
					return true
				}
			}
		}
	}
	return false
}

// RawCounts returns the marker count of every page, sentinel included.
func (s Scanner) RawCounts(pages []Page) []int {
	counts := make([]int, len(pages))
	for i, page := range pages {
		counts[i] = s.Count(page)
	}
	return counts
}

// Build scans the pages and returns their marker index.
func (s Scanner) Build(pages []Page) Meta {
	return FromRawCounts(s.RawCounts(pages))
}

// Build scans pages for markers painted with DefaultFill.
func Build(pages []Page) Meta {
	return Scanner{}.Build(pages)
}
