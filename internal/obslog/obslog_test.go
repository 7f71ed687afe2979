package obslog

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/vtime"
)

func TestAdapter_Log_TranslatesRecordIntoSlogAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewAdapter(logger)

	a.Log(collab.Record{
		Level:     collab.LevelInfo,
		Time:      vtime.Zero.Add(5 * vtime.Second),
		Component: object.TypeID("quartz.demo.Ping"),
		Body:      "tick",
		Fields:    map[string]any{"count": 3},
	})

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "msg=tick")
	assert.Contains(t, out, "component=quartz.demo.Ping")
	assert.Contains(t, out, "count=3")
}

func TestLevelToSlog_MapsSevenLevelsDownToFour(t *testing.T) {
	assert.Equal(t, slog.LevelError, levelToSlog(collab.LevelFatal))
	assert.Equal(t, slog.LevelError, levelToSlog(collab.LevelError))
	assert.Equal(t, slog.LevelWarn, levelToSlog(collab.LevelWarning))
	assert.Equal(t, slog.LevelInfo, levelToSlog(collab.LevelInfo))
	assert.Equal(t, slog.LevelDebug, levelToSlog(collab.LevelDebug))
	assert.Equal(t, slog.LevelDebug, levelToSlog(collab.LevelFunction))
	assert.Equal(t, slog.LevelDebug, levelToSlog(collab.LevelTrace))
}

func TestAdapter_SatisfiesCollabLogger(t *testing.T) {
	var _ collab.Logger = NewAdapter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}
