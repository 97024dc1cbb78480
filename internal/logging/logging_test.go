package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriterJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "info")
	log.With("component", "reclaimer").Info("sweep finished", "expired", 2)
	log.Debug("dropped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sweep finished", line["msg"])
	assert.Equal(t, "reclaimer", line["component"])
	assert.EqualValues(t, 2, line["expired"])
}

func TestNewWithWriterTextInDev(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "dev", "debug").Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
