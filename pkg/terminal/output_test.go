package terminal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterQuietSuppressesInfoNotErrors(t *testing.T) {
	var out, errW bytes.Buffer
	w := NewWithOutput(&out, &errW, true)

	w.Info("hello")
	w.Success("done")
	w.Detail("detail")
	w.Error("boom %d", 7)

	assert.Empty(t, out.String())
	assert.Contains(t, errW.String(), "boom 7")
}

func TestWriterRoutesByLevel(t *testing.T) {
	var out, errW bytes.Buffer
	w := NewWithOutput(&out, &errW, false)

	w.Success("published %s", "index.html")
	w.Warn("fell back")
	w.Error("bad")

	assert.Contains(t, out.String(), "published index.html")
	assert.Contains(t, out.String(), "fell back")
	assert.Contains(t, errW.String(), "bad")
	assert.NotContains(t, out.String(), "bad")
}
