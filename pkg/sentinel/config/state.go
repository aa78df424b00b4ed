package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DriveState is the host-side record for one drive.
type DriveState struct {
	Root          string     `yaml:"root,omitempty"`
	LastSweepTime *time.Time `yaml:"last_sweep_time,omitempty"`
	LastCheckTime *time.Time `yaml:"last_check_time,omitempty"`
}

// State is mutable host state that outlives one invocation.
type State struct {
	LastDrive     string                `yaml:"last_drive,omitempty"`
	LastCheckTime *time.Time            `yaml:"last_check_time,omitempty"`
	LastSweepTime *time.Time            `yaml:"last_sweep_time,omitempty"`
	Drives        map[string]DriveState `yaml:"drives,omitempty"`
}

// Drive returns the record for id, or a zero record.
func (s *State) Drive(id string) DriveState {
	if s == nil || s.Drives == nil {
		return DriveState{}
	}
	return s.Drives[id]
}

// StateStore reads and updates the state file. Updates apply to the current
// file contents, so fields an update does not touch are preserved.
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore returns a store for path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file path.
func (s *StateStore) Path() string { return s.path }

// Load returns the current state. A missing or unreadable file yields an
// empty state.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*State, error) {
	st := &State{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return &State{}, nil
	}
	return st, nil
}

// Update applies fn to the current state and writes the result atomically.
func (s *StateStore) Update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	fn(st)

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (st *State) drive(id string) DriveState {
	if st.Drives == nil {
		st.Drives = make(map[string]DriveState)
	}
	return st.Drives[id]
}

// RecordSweep stores a successful sweep of drive id at t, both per drive
// and as the global fallback.
func (s *StateStore) RecordSweep(id, root string, t time.Time) error {
	return s.Update(func(st *State) {
		d := st.drive(id)
		d.Root = root
		d.LastSweepTime = &t
		st.Drives[id] = d
		st.LastSweepTime = &t
		st.LastDrive = root
	})
}

// RecordCheck stores a completed quick check of drive id at t.
func (s *StateStore) RecordCheck(id, root string, t time.Time) error {
	return s.Update(func(st *State) {
		d := st.drive(id)
		d.Root = root
		d.LastCheckTime = &t
		st.Drives[id] = d
		st.LastCheckTime = &t
		st.LastDrive = root
	})
}
