package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"FREDflow/internal/model"
)

// ErrNotFound is returned by Load when no state exists for a series.
var ErrNotFound = errors.New("series state not found")

// Store persists one SeriesState per series identifier.
type Store interface {
	Load(id string) (*model.SeriesState, error)
	Save(st *model.SeriesState) error
	List() (map[string]*model.SeriesState, error)
}

// FileStore keeps each series state as <dir>/<id>.json.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads the state of a single series.
func (s *FileStore) Load(id string) (*model.SeriesState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.path(id))
}

func (s *FileStore) read(path string) (*model.SeriesState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var st model.SeriesState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &st, nil
}

// Save writes the state to a temp file and renames it into place.
func (s *FileStore) Save(st *model.SeriesState) error {
	if !model.ValidID(st.Series.ID) {
		return fmt.Errorf("save state: invalid series id %q", st.Series.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = s.now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, st.Series.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(st.Series.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// List loads every state document in the directory, keyed by series id.
func (s *FileStore) List() (map[string]*model.SeriesState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list state dir: %w", err)
	}
	states := make(map[string]*model.SeriesState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		st, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		states[st.Series.ID] = st
	}
	return states, nil
}

// SortedIDs returns the keys of a state map in ascending order.
func SortedIDs(states map[string]*model.SeriesState) []string {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
