package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(drive string, n int) *Manifest {
	m := &Manifest{DriveID: drive, BuiltAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)}
	for i := n - 1; i >= 0; i-- {
		m.Entries = append(m.Entries, Entry{Path: "DCIM/IMG_" + string(rune('A'+i)) + ".JPG", Hash: strings.Repeat(string(rune('a'+i)), 64)})
	}
	return m
}

func TestStore_SchemaWritten(t *testing.T) {
	s := openStore(t)
	schema := s.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, CurrentSchemaVersion, schema.Version)
}

func TestStore_SaveLoad(t *testing.T) {
	s := openStore(t)

	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Nil(t, got, "no manifest yet")

	m := sample("CARD", 3)
	require.NoError(t, s.Save(m))

	got, err = s.Load("CARD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "CARD", got.DriveID)
	assert.True(t, m.BuiltAt.Equal(got.BuiltAt))
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "DCIM/IMG_A.JPG", got.Entries[0].Path, "entries come back sorted")
	assert.Equal(t, strings.Repeat("a", 64), got.Entries[0].Hash)
}

func TestStore_SaveReplacesPreviousGeneration(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(sample("CARD", 5)))
	require.NoError(t, s.Save(sample("CARD", 2)))

	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2)

	var keys int
	require.NoError(t, s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := drivePrefix("CARD")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys++
		}
		return nil
	}))
	assert.Equal(t, 2, keys, "old generation removed")
}

func TestStore_DrivesAreIndependent(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(sample("CARD", 2)))
	require.NoError(t, s.Save(sample("CARD2", 4)))

	a, err := s.Load("CARD")
	require.NoError(t, err)
	b, err := s.Load("CARD2")
	require.NoError(t, err)
	assert.Len(t, a.Entries, 2)
	assert.Len(t, b.Entries, 4)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "CARD", list[0].DriveID)
	assert.Equal(t, 4, list[1].Entries)
}

func TestStore_CorruptHeaderLoadsAsAbsent(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(sample("CARD", 2)))
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey("CARD"), []byte("{not json"))
	}))

	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The next save recovers.
	require.NoError(t, s.Save(sample("CARD", 1)))
	got, err = s.Load("CARD")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestStore_IncompleteGenerationLoadsAsAbsent(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(sample("CARD", 2)))

	data, err := json.Marshal(header{DriveID: "CARD", Generation: 1, Entries: 7})
	require.NoError(t, err)
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey("CARD"), data)
	}))

	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(sample("CARD", 2)))
	require.NoError(t, s.Delete("CARD"))
	require.NoError(t, s.Delete("CARD"))

	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_InvalidDriveID(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Save(&Manifest{}))
	assert.Error(t, s.Save(nil))

	got, err := s.Load("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ExportJSON(t *testing.T) {
	s := openStore(t)
	out := filepath.Join(t.TempDir(), "card.json")

	err := s.ExportJSON("CARD", out)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(sample("CARD", 2)))
	require.NoError(t, s.ExportJSON("CARD", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "CARD", m.DriveID)
	assert.Len(t, m.Entries, 2)

	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(sample("CARD", 3)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load("CARD")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 3)
}
