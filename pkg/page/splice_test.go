package page_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
	"github.com/natwellis/pagetender/pkg/page"
)

const (
	beginSentinel = "<!--BEGIN_EDITABLE-->"
	endSentinel   = "<!--END_EDITABLE-->"
)

func newSplicer() *page.Splicer {
	return page.NewSplicer(beginSentinel, endSentinel)
}

func TestSpliceReplacesRegionOnly(t *testing.T) {
	s := newSplicer()
	pageText := `<div>` + beginSentinel + `<p>old</p><span id="last-updated"></span>` + endSentinel + `</div>`

	out, err := s.Splice(pageText, `<p>new</p><span id="last-updated"></span>`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<div>"+beginSentinel))
	assert.True(t, strings.HasSuffix(out, endSentinel+"</div>"))
	assert.Contains(t, out, "<p>new</p>")
	assert.NotContains(t, out, "<p>old</p>")
}

func TestSpliceIsIdempotent(t *testing.T) {
	s := newSplicer()
	pageText := "prefix" + beginSentinel + "first" + endSentinel + "suffix"
	region := `<p>stable</p><span id="last-updated">t</span>`

	once, err := s.Splice(pageText, region)
	require.NoError(t, err)
	twice, err := s.Splice(once, region)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSplicePreservesBytesOutsideSentinels(t *testing.T) {
	s := newSplicer()
	prefix := "<html is fine outside>\n\t weird   spacing \r\n"
	suffix := "\n<!-- trailing comment --> \t"
	pageText := prefix + beginSentinel + "old region" + endSentinel + suffix

	out, err := s.Splice(pageText, "new region")
	require.NoError(t, err)
	assert.Equal(t, prefix+beginSentinel+"new region"+endSentinel+suffix, out)
}

func TestSpliceRoundTripsRegion(t *testing.T) {
	s := newSplicer()
	pageText := "a" + beginSentinel + "old" + endSentinel + "b"
	region := `<p>exact bytes</p><span id="last-updated"></span>`

	out, err := s.Splice(pageText, region)
	require.NoError(t, err)

	got, err := s.ExtractRegion(out)
	require.NoError(t, err)
	assert.Equal(t, region, got)
}

func TestSpliceFailsWithoutSentinels(t *testing.T) {
	s := newSplicer()
	cases := []string{
		"no sentinels at all",
		beginSentinel + " only begin",
		"only end " + endSentinel,
		beginSentinel + "x" + endSentinel + beginSentinel + "y" + endSentinel,
		endSentinel + "backwards" + beginSentinel,
	}
	for _, c := range cases {
		_, err := s.Splice(c, "region")
		require.Error(t, err, "page: %s", c)
		assert.True(t, pterrors.IsCode(err, pterrors.ErrCodeMarkerNotFound), "page %q: got %v", c, err)
		assert.False(t, pterrors.IsRecoverable(err))
	}
}

// Scenario from the pipeline's contract: accepted candidate is spliced,
// timestamp lands inside the sentinels, wrapper untouched.
func TestSpliceScenarioAcceptedCandidate(t *testing.T) {
	v := newValidator()
	s := newSplicer()
	inj := page.NewInjector("last-updated", eastern(t))
	insp := page.NewInspector("last-updated")

	pageText := `<div>` + beginSentinel + `<p>old</p><span id="last-updated"></span>` + endSentinel + `</div>`
	candidate := `<p>new</p><span id="last-updated"></span>`

	require.NoError(t, v.Validate(candidate))

	stamped, err := inj.InjectTimestamp(candidate, time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	out, err := s.Splice(pageText, stamped)
	require.NoError(t, err)

	assert.Contains(t, out, "<p>new</p>")
	assert.True(t, strings.HasPrefix(out, "<div>"))
	assert.True(t, strings.HasSuffix(out, "</div>"))

	region, err := s.ExtractRegion(out)
	require.NoError(t, err)
	assert.Contains(t, region, "Last updated: 2026-02-02 07:00:00 EST")

	assert.NoError(t, insp.VerifyPublished(out))
}
