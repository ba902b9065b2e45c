package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestingLogger(t *testing.T) {
	t.Run("quiet without verbose", func(t *testing.T) {
		var buf bytes.Buffer
		l := newTestingLogger(&buf, false, "debug")
		l.Error("boom")
		assert.Empty(t, buf.String())
	})

	t.Run("level from env filters", func(t *testing.T) {
		var buf bytes.Buffer
		l := newTestingLogger(&buf, true, "error")
		l.Info("chatty")
		l.Error("boom")
		assert.NotContains(t, buf.String(), "chatty")
		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("no level keeps everything", func(t *testing.T) {
		var buf bytes.Buffer
		l := newTestingLogger(&buf, true, "")
		l.Info("chatty")
		assert.Contains(t, buf.String(), "chatty")
	})

	t.Run("bad level is reported and ignored", func(t *testing.T) {
		var buf bytes.Buffer
		l := newTestingLogger(&buf, true, "loud")
		assert.Contains(t, buf.String(), "Ignoring test log level")
		l.Info("chatty")
		assert.Contains(t, buf.String(), "chatty")
	})
}

func TestTestingLoggerIsShared(t *testing.T) {
	assert.Same(t, TestingLogger(), TestingLogger())
}
