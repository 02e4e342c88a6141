package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminal(&buf)

	n.Notify(LevelSuccess, "Translated", "hello")
	n.Notify(LevelError, "Connection error", "gateway unreachable")
	n.Notify(LevelInfo, "Ready", "")

	assert.Equal(t, "✓ Translated: hello\n✗ Connection error: gateway unreachable\nℹ Ready\n", buf.String())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(LevelWarning, "Busy", "wait")

	msgs := r.Messages()
	assert.Equal(t, []Message{{Level: LevelWarning, Title: "Busy", Message: "wait"}}, msgs)

	msgs[0].Title = "changed"
	assert.Equal(t, "Busy", r.Messages()[0].Title)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warning", LevelWarning.String())
	assert.Equal(t, "unknown", Level(9).String())
}
