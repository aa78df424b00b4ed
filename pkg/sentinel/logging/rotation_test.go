package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 100, MaxBackups: 2})
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 5; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(100))

	assert.Len(t, Backups(path), 2, "older backups pruned to MaxBackups")
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), RotationConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestBackups_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.log")
	for _, name := range []string{"sentinel.log", "sentinel.2026-01-02-030405.000.log", "other.log", "sentinel.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got := Backups(path)
	require.Len(t, got, 1)
	assert.Equal(t, "sentinel.2026-01-02-030405.000.log", filepath.Base(got[0]))
}
