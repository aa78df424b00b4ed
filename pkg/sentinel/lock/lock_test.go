package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "CARD")
	require.NoError(t, err)

	pid, err := ReadPID(l.Path())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	_, err = Acquire(dir, "CARD")
	require.ErrorIs(t, err, ErrLocked)
	var held *HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, os.Getpid(), held.PID)

	other, err := Acquire(dir, "OTHER")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	again, err := Acquire(dir, "CARD")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquire_RecoversStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CARD.lock")

	// Max PID on Linux is far below this.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644))

	l, err := Acquire(dir, "CARD")
	require.NoError(t, err)
	defer l.Release()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_FreshUnreadableLockIsHeld(t *testing.T) {
	dir := t.TempDir()
	// Another process has created the file but not written its PID yet.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CARD.lock"), nil, 0o644))

	_, err := Acquire(dir, "CARD")
	require.ErrorIs(t, err, ErrLocked)

	_, err = os.Stat(filepath.Join(dir, "CARD.lock"))
	assert.NoError(t, err, "lock file must not be removed")
}

func TestAcquire_RecoversGarbageLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CARD.lock")
	require.NoError(t, os.WriteFile(path, []byte("???"), 0o644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	l, err := Acquire(dir, "CARD")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestAlive(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(0))
	assert.False(t, Alive(-1))
}

func TestNilRelease(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
