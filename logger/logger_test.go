package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInactiveLoggerIsSilent(t *testing.T) {
	lg := Logger{}
	require.NotPanics(t, func() {
		lg.Info("nothing")
		lg.Warning("nothing")
		lg.Error("nothing")
		lg.WithField("block", 1).Info("nothing")
	})
}

func TestLoggerWritesLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf).WithField("block", 37)

	lg.Info("gif found")
	lg.Warning("short read")
	lg.Error("resolver failed")

	out := buf.String()
	require.Contains(t, out, "level=info")
	require.Contains(t, out, "level=warning")
	require.Contains(t, out, "level=error")
	require.Contains(t, out, "block=37")
	require.Contains(t, out, "gif found")
}

func TestConsoleLoggerKeepsFailures(t *testing.T) {
	var buf bytes.Buffer
	lg := NewConsole(&buf).WithField("block", 2)

	lg.Info("scanning")
	lg.Warning("no inode owns the block")
	lg.Error("stat failed")

	out := buf.String()
	require.NotContains(t, out, "scanning")
	require.Contains(t, out, "no inode owns the block")
	require.Contains(t, out, "stat failed")
	require.Contains(t, out, "block=2")
}

func TestInitializeWithoutFileFallsBackToConsole(t *testing.T) {
	saved := FSLogger
	defer func() { FSLogger = saved }()

	InitializeLogger(false, "")
	require.True(t, FSLogger.active)
	require.Equal(t, logrus.WarnLevel, FSLogger.entry.Logger.GetLevel())
}
