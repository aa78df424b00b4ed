package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/sentinel/pkg/sentinel/hasher"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// card lays out a small camera card.
func card(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "DCIM/100CANON/IMG_0001.JPG", "first frame")
	writeFile(t, root, "DCIM/100CANON/IMG_0002.JPG", "second frame")
	writeFile(t, root, "photo.jpg", "holiday")
	writeFile(t, root, "notes/readme.txt", "hello")
	writeFile(t, root, "Sentinel/.last_sweep", "2026-01-01T00:00:00Z")
	writeFile(t, root, "SentinelCheck_20260101_000000_abcd1234/test_0.bin", "leftover")
	return root
}

func TestFiles_SortedAndFiltered(t *testing.T) {
	root := card(t)
	writeFile(t, root, "nested/Sentinel/kept.txt", "only the root-level Sentinel dir is skipped")

	got, err := Files(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DCIM/100CANON/IMG_0001.JPG",
		"DCIM/100CANON/IMG_0002.JPG",
		"nested/Sentinel/kept.txt",
		"notes/readme.txt",
		"photo.jpg",
	}, got)
}

func TestFiles_KeepsUserFoldersWithCheckPrefix(t *testing.T) {
	root := card(t)
	writeFile(t, root, "SentinelCheck_vacation/img.jpg", "beach")
	writeFile(t, root, "SentinelSweep_backup/a.txt", "a")

	got, err := Files(root)
	require.NoError(t, err)
	assert.Contains(t, got, "SentinelCheck_vacation/img.jpg")
	assert.Contains(t, got, "SentinelSweep_backup/a.txt")
	assert.NotContains(t, got, "SentinelCheck_20260101_000000_abcd1234/test_0.bin")
}

func TestFiles_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.txt", "x")
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := Files(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, got)
}

func TestFiles_MissingRoot(t *testing.T) {
	_, err := Files(filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	root := card(t)
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	var reports []types.Progress
	res, err := Build(context.Background(), root, Options{
		DriveID:    "CARD",
		Now:        func() time.Time { return at },
		OnProgress: func(p types.Progress) { reports = append(reports, p) },
	})
	require.NoError(t, err)
	require.False(t, res.Aborted)
	require.NotNil(t, res.Manifest)

	m := res.Manifest
	assert.Equal(t, "CARD", m.DriveID)
	assert.Equal(t, at, m.BuiltAt)
	assert.Equal(t, 4, res.Hashed)
	require.Len(t, m.Entries, 4)

	want, err := hasher.Sum(strings.NewReader("holiday"), 0)
	require.NoError(t, err)
	assert.Equal(t, Entry{Path: "photo.jpg", Hash: want}, m.Entries[3])

	require.NotEmpty(t, reports)
	assert.Equal(t, "Building manifest: IMG_0001.JPG…", reports[0].Message)
	assert.Equal(t, types.Progress{Current: 4, Total: 4, Message: "Manifest built"}, reports[len(reports)-1])
}

func TestBuild_EmptyDrive(t *testing.T) {
	res, err := Build(context.Background(), t.TempDir(), Options{DriveID: "EMPTY"})
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)
	assert.Zero(t, res.Manifest.Len())
}

func TestBuild_Aborted(t *testing.T) {
	root := card(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := Build(ctx, root, Options{
		OnProgress: func(p types.Progress) {
			if p.Current == 1 {
				cancel()
			}
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Nil(t, res.Manifest)
	assert.Equal(t, 2, res.Hashed)
}

func TestVerify_RoundTrip(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	res := Verify(context.Background(), root, built.Manifest, Options{})
	assert.True(t, res.Passed)
	assert.False(t, res.Aborted)
	assert.Empty(t, res.Mismatches)
	assert.Equal(t, 4, res.Matched())
	for _, r := range res.Records {
		require.NotNil(t, r.ObservedHash)
		assert.Equal(t, r.ExpectedHash, *r.ObservedHash)
	}
}

func TestVerify_ContentMismatch(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	writeFile(t, root, "photo.jpg", "holidaz")

	res := Verify(context.Background(), root, built.Manifest, Options{})
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"photo.jpg"}, res.Mismatches)

	rec := res.Records[3]
	assert.Equal(t, "photo.jpg", rec.Path)
	assert.False(t, rec.Match)
	assert.Empty(t, rec.Note)
	require.NotNil(t, rec.ObservedHash)
	assert.NotEqual(t, rec.ExpectedHash, *rec.ObservedHash)
}

func TestVerify_MissingFile(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "notes", "readme.txt")))

	res := Verify(context.Background(), root, built.Manifest, Options{})
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"notes/readme.txt (missing)"}, res.Mismatches)
	assert.Equal(t, NoteMissing, res.Records[2].Note)
	assert.Nil(t, res.Records[2].ObservedHash)
}

func TestVerify_ParentReplacedByFile(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	dir := filepath.Join(root, "notes")
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a folder"), 0o644))

	res := Verify(context.Background(), root, built.Manifest, Options{})
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"notes/readme.txt (missing)"}, res.Mismatches)
	assert.Equal(t, NoteMissing, res.Records[2].Note)
}

func TestVerify_ReadError(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	// A directory where a file used to be cannot be hashed.
	path := filepath.Join(root, "photo.jpg")
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	res := Verify(context.Background(), root, built.Manifest, Options{})
	assert.Equal(t, []string{"photo.jpg (read error)"}, res.Mismatches)
	assert.Equal(t, NoteReadError, res.Records[3].Note)
}

func TestVerify_Aborted(t *testing.T) {
	root := card(t)
	built, err := Build(context.Background(), root, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := Verify(ctx, root, built.Manifest, Options{
		OnProgress: func(p types.Progress) {
			if p.Current == 2 {
				cancel()
			}
		},
	})
	assert.True(t, res.Aborted)
	assert.True(t, res.Passed)
	assert.Len(t, res.Records, 3)
}

func TestRecord_Mismatch(t *testing.T) {
	assert.Equal(t, "a.jpg", Record{Path: "a.jpg"}.Mismatch())
	assert.Equal(t, "a.jpg (missing)", Record{Path: "a.jpg", Note: NoteMissing}.Mismatch())
	assert.Equal(t, "a.jpg (read error)", Record{Path: "a.jpg", Note: NoteReadError}.Mismatch())
}
