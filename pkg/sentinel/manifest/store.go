package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	m:__schema__                          -> Schema JSON
//	h:<drive>                             -> header JSON (active generation)
//	e:<drive>\x00<generation>\x00<path>   -> hex digest
//
// A save writes all entries under a fresh generation before pointing the
// header at it, so readers only ever see a complete manifest.
const (
	prefixHeader = "h:"
	prefixEntry  = "e:"
	schemaKey    = "m:__schema__"
)

// CurrentSchemaVersion is the on-disk layout version.
const CurrentSchemaVersion = 1

// ErrNotFound is returned when a drive has no stored manifest.
var ErrNotFound = errors.New("manifest not found")

// Schema records the layout version of a store.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type header struct {
	DriveID    string    `json:"drive_id"`
	BuiltAt    time.Time `json:"built_at"`
	Generation uint64    `json:"generation"`
	Entries    int       `json:"entries"`
}

// Summary describes a stored manifest without its entries.
type Summary struct {
	DriveID string    `json:"drive_id" yaml:"drive_id"`
	BuiltAt time.Time `json:"built_at" yaml:"built_at"`
	Entries int       `json:"entries" yaml:"entries"`
}

// Store persists manifests in a Badger database on the host.
type Store struct {
	db *badger.DB
}

// DefaultDir returns $XDG_DATA_HOME/sentinel/manifests.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "sentinel", "manifests")
}

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening manifest store: %w", err)
	}

	s := &Store{db: db}
	if s.Schema() == nil {
		if err := s.setSchema(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Schema returns the stored schema, or nil if none was written.
func (s *Store) Schema() *Schema {
	var schema *Schema
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	return schema
}

func (s *Store) setSchema() error {
	data, err := json.Marshal(Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

func headerKey(drive string) []byte {
	return []byte(prefixHeader + drive)
}

func drivePrefix(drive string) []byte {
	return []byte(prefixEntry + drive + "\x00")
}

func generationPrefix(drive string, gen uint64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%016x\x00", prefixEntry, drive, gen))
}

func validDriveID(drive string) error {
	if drive == "" || strings.ContainsRune(drive, 0) {
		return fmt.Errorf("invalid drive id %q", drive)
	}
	return nil
}

// readHeader returns nil when the drive has no header or it cannot be decoded.
func readHeader(txn *badger.Txn, drive string) (*header, error) {
	item, err := txn.Get(headerKey(drive))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var h header
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &h)
	}); err != nil {
		log.Warn("discarding unreadable manifest header", "drive", drive, "error", err)
		return nil, nil
	}
	return &h, nil
}

// Save replaces the stored manifest for m.DriveID.
func (s *Store) Save(m *Manifest) error {
	if m == nil {
		return errors.New("nil manifest")
	}
	if err := validDriveID(m.DriveID); err != nil {
		return err
	}

	var current *header
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		current, err = readHeader(txn, m.DriveID)
		return err
	}); err != nil {
		return fmt.Errorf("reading manifest header: %w", err)
	}

	var keep []byte
	gen := uint64(1)
	if current != nil {
		keep = generationPrefix(m.DriveID, current.Generation)
		gen = current.Generation + 1
	}

	// Leftovers from an interrupted save would otherwise mix into gen.
	if err := s.deleteGenerations(m.DriveID, keep); err != nil {
		return fmt.Errorf("clearing stale manifest data: %w", err)
	}

	entries := append([]Entry(nil), m.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	prefix := generationPrefix(m.DriveID, gen)
	for _, e := range entries {
		key := append(append([]byte(nil), prefix...), e.Path...)
		if err := wb.Set(key, []byte(e.Hash)); err != nil {
			return fmt.Errorf("writing manifest entries: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("writing manifest entries: %w", err)
	}

	data, err := json.Marshal(header{
		DriveID:    m.DriveID,
		BuiltAt:    m.BuiltAt,
		Generation: gen,
		Entries:    len(entries),
	})
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headerKey(m.DriveID), data)
	}); err != nil {
		return fmt.Errorf("committing manifest: %w", err)
	}

	if err := s.deleteGenerations(m.DriveID, prefix); err != nil {
		log.Warn("removing previous manifest generation", "drive", m.DriveID, "error", err)
	}
	log.Info("manifest saved", "drive", m.DriveID, "entries", len(entries), "generation", gen)
	return nil
}

// deleteGenerations removes entry keys for drive that do not start with keep.
func (s *Store) deleteGenerations(drive string, keep []byte) error {
	var doomed [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := drivePrefix(drive)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if keep != nil && strings.HasPrefix(string(key), string(keep)) {
				continue
			}
			doomed = append(doomed, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(doomed) == 0 {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Load returns the stored manifest for drive. A missing or damaged manifest
// yields (nil, nil) so the caller rebuilds it; only database failures are
// errors.
func (s *Store) Load(drive string) (*Manifest, error) {
	if validDriveID(drive) != nil {
		return nil, nil
	}

	var m *Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		h, err := readHeader(txn, drive)
		if err != nil || h == nil {
			return err
		}

		entries := make([]Entry, 0, h.Entries)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := generationPrefix(drive, h.Generation)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(prefix):])
			hash, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Path: path, Hash: string(hash)})
		}

		if len(entries) != h.Entries {
			log.Warn("discarding incomplete manifest", "drive", drive, "want", h.Entries, "got", len(entries))
			return nil
		}
		m = &Manifest{DriveID: h.DriveID, BuiltAt: h.BuiltAt, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	return m, nil
}

// Delete removes the stored manifest for drive. Deleting a missing manifest
// is not an error.
func (s *Store) Delete(drive string) error {
	if err := validDriveID(drive); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(headerKey(drive))
	}); err != nil {
		return fmt.Errorf("deleting manifest header: %w", err)
	}
	if err := s.deleteGenerations(drive, nil); err != nil {
		return fmt.Errorf("deleting manifest entries: %w", err)
	}
	return nil
}

// List returns summaries of every stored manifest ordered by drive id.
func (s *Store) List() ([]Summary, error) {
	out := []Summary{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixHeader)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var h header
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &h)
			}); err != nil {
				continue
			}
			out = append(out, Summary{DriveID: h.DriveID, BuiltAt: h.BuiltAt, Entries: h.Entries})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing manifests: %w", err)
	}
	return out, nil
}

// ExportJSON writes the manifest for drive to path as indented JSON,
// replacing path atomically.
func (s *Store) ExportJSON(drive, path string) error {
	m, err := s.Load(drive)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, drive)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
