package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionFiltering(t *testing.T) {
	t.Cleanup(func() { EnableSections("loader", "ir") })
	out := &bytes.Buffer{}
	logger := slog.New(&filteringHandler{
		underlying: slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	EnableSections("jsonish")
	logger.With("section", "jsonish").Debug("shown")
	logger.With("section", "ir").Debug("hidden")
	logger.Debug("also shown", "section", "jsonish")
	logger.With("section", "ir").Warn("warnings always show")

	assert.Contains(t, out.String(), "msg=shown")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `msg="also shown"`)
	assert.Contains(t, out.String(), `msg="warnings always show"`)
}
