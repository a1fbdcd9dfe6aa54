package page

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// timestampFormat renders civil time for readers of the page.
const timestampFormat = "2006-01-02 15:04:05 MST"

// Injector rewrites the text content of the timestamp element.
type Injector struct {
	timestampID string
	loc         *time.Location
}

// NewInjector builds an injector targeting the element whose id
// attribute equals timestampID, rendering times in loc.
func NewInjector(timestampID string, loc *time.Location) *Injector {
	if loc == nil {
		loc = time.UTC
	}
	return &Injector{timestampID: timestampID, loc: loc}
}

// FormatTime renders now the way the page displays it.
func (inj *Injector) FormatTime(now time.Time) string {
	return "Last updated: " + now.In(inj.loc).Format(timestampFormat)
}

// InjectTimestamp replaces the text content of the timestamp element
// with a human-readable rendering of now. The element is located by its
// id, and every byte outside its text content is preserved exactly (no
// re-serialization). A missing element is an internal-consistency
// error: validation guarantees exactly one exists.
func (inj *Injector) InjectTimestamp(snippet string, now time.Time) (string, error) {
	start, end, err := inj.contentSpan(snippet)
	if err != nil {
		return "", err
	}
	return snippet[:start] + inj.FormatTime(now) + snippet[end:], nil
}

// contentSpan locates the byte range of the target element's content:
// from just after its start tag to just before its matching end tag.
func (inj *Injector) contentSpan(snippet string) (int, int, error) {
	z := html.NewTokenizer(strings.NewReader(snippet))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return 0, 0, pterrors.New(pterrors.ErrCodeTimestampTargetMissing, "timestamp element not found in snippet").
				WithContext("id", inj.timestampID)
		}
		raw := len(z.Raw())
		if tt == html.StartTagToken {
			name, hasAttr := z.TagName()
			if hasAttr && tokenHasID(z, inj.timestampID) {
				contentStart := offset + raw
				contentEnd, err := inj.findClosing(z, string(name), contentStart)
				if err != nil {
					return 0, 0, err
				}
				return contentStart, contentEnd, nil
			}
		}
		offset += raw
	}
}

// findClosing scans forward from the target's start tag to the
// matching end tag, tracking nesting of same-named elements. Returns
// the byte offset where the end tag begins.
func (inj *Injector) findClosing(z *html.Tokenizer, name string, offset int) (int, error) {
	depth := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return 0, pterrors.New(pterrors.ErrCodeTimestampTargetMissing, "timestamp element is never closed").
				WithContext("id", inj.timestampID)
		}
		raw := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			tag, _ := z.TagName()
			if string(tag) == name {
				depth++
			}
		case html.EndTagToken:
			tag, _ := z.TagName()
			if string(tag) == name {
				depth--
				if depth == 0 {
					return offset, nil
				}
			}
		}
		offset += raw
	}
}
