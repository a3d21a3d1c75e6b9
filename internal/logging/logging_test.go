package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	min   slog.Level
	count int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= c.min
}

func (c *countingHandler) Handle(context.Context, slog.Record) error {
	c.count++
	return nil
}

func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler {
	return c
}

func (c *countingHandler) WithGroup(string) slog.Handler {
	return c
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	info := &countingHandler{min: slog.LevelInfo}
	errOnly := &countingHandler{min: slog.LevelError}
	logger := slog.New(NewMultiHandler(info, errOnly))

	logger.Info("site generated")
	logger.Error("generation failed")

	assert.Equal(t, 2, info.count)
	assert.Equal(t, 1, errOnly.count)
}

func TestSetupWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := setup(&buf, "warn")
	logger.Info("dropped")
	logger.Warn("kept", "site_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "abc", line["site_id"])
}

func TestAttachKeepsExistingOutput(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "info")
	sink := &countingHandler{min: slog.LevelError}
	Attach(sink)

	slog.Info("site generated")
	slog.Error("generation failed")

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Equal(t, 1, sink.count)
}

func TestSystemLogFromRecord(t *testing.T) {
	rec := slog.NewRecord(time.Now(), slog.LevelError, "generation failed", 0)
	rec.AddAttrs(
		slog.String("site_id", "site-1"),
		slog.String("error", "template missing"),
		slog.Float64("latency_ms", 12.6),
		slog.String("industry", "plumbing"),
	)

	entry := systemLogFromRecord(rec, []slog.Attr{slog.String("request_id", "req-9")})

	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "req-9", entry.TraceID)
	require.NotNil(t, entry.SiteID)
	assert.Equal(t, "site-1", *entry.SiteID)
	assert.Equal(t, "template missing", entry.Error)
	assert.Equal(t, 13, entry.LatencyMs)
	assert.JSONEq(t, `{"industry":"plumbing"}`, string(entry.Extra))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
}
