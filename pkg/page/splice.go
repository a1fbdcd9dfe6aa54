package page

import (
	"strings"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Splicer replaces the editable region of a page document, delimited by
// a unique begin/end sentinel pair.
type Splicer struct {
	begin string
	end   string
}

// NewSplicer builds a splicer over the given sentinel comments.
func NewSplicer(begin, end string) *Splicer {
	return &Splicer{begin: begin, end: end}
}

// Splice replaces everything strictly between the sentinels with
// region, preserving the sentinels themselves and every byte outside
// them. It fails with MARKER_NOT_FOUND unless the page contains exactly
// one begin and one end sentinel, in that order. Pure: persistence is
// the caller's job. Idempotent for fixed region content.
func (s *Splicer) Splice(pageText, region string) (string, error) {
	beginStart, endStart, err := s.locate(pageText)
	if err != nil {
		return "", err
	}
	return pageText[:beginStart+len(s.begin)] + region + pageText[endStart:], nil
}

// ExtractRegion returns the current content strictly between the
// sentinels.
func (s *Splicer) ExtractRegion(pageText string) (string, error) {
	beginStart, endStart, err := s.locate(pageText)
	if err != nil {
		return "", err
	}
	return pageText[beginStart+len(s.begin) : endStart], nil
}

// locate finds the unique sentinel pair, returning the byte offsets of
// the begin sentinel and the end sentinel.
func (s *Splicer) locate(pageText string) (int, int, error) {
	if n := strings.Count(pageText, s.begin); n != 1 {
		return 0, 0, pterrors.New(pterrors.ErrCodeMarkerNotFound, "page must contain exactly one begin sentinel").
			WithContext("sentinel", s.begin).
			WithContext("count", n)
	}
	if n := strings.Count(pageText, s.end); n != 1 {
		return 0, 0, pterrors.New(pterrors.ErrCodeMarkerNotFound, "page must contain exactly one end sentinel").
			WithContext("sentinel", s.end).
			WithContext("count", n)
	}

	beginStart := strings.Index(pageText, s.begin)
	endStart := strings.Index(pageText, s.end)
	if endStart < beginStart+len(s.begin) {
		return 0, 0, pterrors.New(pterrors.ErrCodeMarkerNotFound, "end sentinel precedes begin sentinel")
	}
	return beginStart, endStart, nil
}
