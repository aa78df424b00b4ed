package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_MissingFile(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))
	st, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, st.LastSweepTime)
	assert.Equal(t, DriveState{}, st.Drive("CARD"))
}

func TestStateStore_PartialUpdatesPreserveFields(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "nested", "state.yaml"))
	sweepAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	checkAt := sweepAt.Add(48 * time.Hour)

	require.NoError(t, s.RecordSweep("CARD", "/media/u/CARD", sweepAt))
	require.NoError(t, s.RecordCheck("CARD", "/media/u/CARD", checkAt))
	require.NoError(t, s.RecordCheck("OTHER", "/media/u/OTHER", checkAt))

	st, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, st.LastSweepTime)
	assert.True(t, sweepAt.Equal(*st.LastSweepTime))
	assert.True(t, checkAt.Equal(*st.LastCheckTime))
	assert.Equal(t, "/media/u/OTHER", st.LastDrive)

	card := st.Drive("CARD")
	require.NotNil(t, card.LastSweepTime)
	assert.True(t, sweepAt.Equal(*card.LastSweepTime))
	assert.True(t, checkAt.Equal(*card.LastCheckTime))

	other := st.Drive("OTHER")
	assert.Nil(t, other.LastSweepTime)
}

func TestStateStore_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml ["), 0o644))

	s := NewStateStore(path)
	st, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, st.LastDrive)

	require.NoError(t, s.RecordCheck("CARD", "/x", time.Now()))
	st, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "/x", st.LastDrive)
}
