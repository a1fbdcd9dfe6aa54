package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Inspector runs structural queries over assembled pages. The pipeline
// uses it as a final gate before persisting: a page that fails
// inspection is never written.
type Inspector struct {
	timestampID string
}

// NewInspector builds an inspector for the given timestamp element id.
func NewInspector(timestampID string) *Inspector {
	return &Inspector{timestampID: timestampID}
}

// VerifyPublished asserts the assembled page carries exactly one
// timestamp element and that its text is non-empty. Both validation and
// injection have already run, so any failure here is an
// internal-consistency error.
func (in *Inspector) VerifyPublished(pageText string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageText))
	if err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeInternal, "parsing assembled page")
	}

	sel := doc.Find(fmt.Sprintf("[id=%q]", in.timestampID))
	if sel.Length() != 1 {
		return pterrors.New(pterrors.ErrCodeInternal, "assembled page must contain exactly one timestamp element").
			WithContext("id", in.timestampID).
			WithContext("count", sel.Length())
	}
	if strings.TrimSpace(sel.Text()) == "" {
		return pterrors.New(pterrors.ErrCodeInternal, "timestamp element is empty after injection").
			WithContext("id", in.timestampID)
	}
	return nil
}
