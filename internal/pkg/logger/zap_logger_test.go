package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewIsolatedLogger(path)

	l.Info("TEACHING_ROUND", "round one", map[string]interface{}{"status": "updated"})
	l.Warn("TEACHING_ROUND", "round two", nil)
	l.Info("OTHER", "noise", nil)
	l.Debug("TEACHING_ROUND", "below file level", nil)
	_ = l.Sync()

	all, err := l.GetLogs(LogFilter{Module: "TEACHING_ROUND"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "round two", all[0].Message)
	assert.Equal(t, "round one", all[1].Message)
	assert.Equal(t, "updated", all[1].Details["status"])

	warns, err := l.GetLogs(LogFilter{Level: "WARN"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, warns, 1)

	page, err := l.GetLogs(LogFilter{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "round two", page[0].Message)

	found, err := l.GetLogById(page[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "round two", found.Message)
}

func TestGetLogsMissingFile(t *testing.T) {
	l := NewIsolatedLogger(filepath.Join(t.TempDir(), "never-written.log"))
	logs, err := l.GetLogs(LogFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestGetLogsFiltersByOwner(t *testing.T) {
	l := NewIsolatedLogger(filepath.Join(t.TempDir(), "audit.log"))
	l.Info("TEACHING_ROUND", "mine", map[string]interface{}{"owner_key": "owner-1"})
	l.Info("TEACHING_ROUND", "theirs", map[string]interface{}{"owner_key": "owner-2"})
	l.Info("TEACHING_ROUND", "unowned", nil)
	_ = l.Sync()

	logs, err := l.GetLogs(LogFilter{Module: "TEACHING_ROUND", Owner: "owner-1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "mine", logs[0].Message)
}
