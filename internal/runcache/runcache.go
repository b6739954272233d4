// Package runcache keeps local bookkeeping for runs the CLI created.
//
// Each active run has one JSON file in the cache directory holding its id,
// name, start time and the next metric step. Commands that log metrics read
// and advance the step so that separate invocations continue a single series.
package runcache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/lock"
)

// Lock timing for entry updates. An update holds the lock for one request.
var (
	LockTimeout = 30 * time.Second
	LockStale   = 5 * time.Minute
)

// ErrNotCached is returned when no entry exists for a run id.
var ErrNotCached = stderrors.New("run is not in the local cache")

// Entry is the cached state of one run.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Step      int       `json:"step"`
}

// Store reads and writes entries under Dir.
type Store struct {
	Dir string
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errors.New(errors.ErrInput,
			fmt.Sprintf("Invalid run id %q", id),
			"Pass the id printed by 'simvue run create'.")
	}
	return filepath.Join(s.Dir, id+".json"), nil
}

// Save writes e, replacing any previous entry for the same id.
func (s *Store) Save(e Entry) error {
	p, err := s.path(e.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrRun,
			"Failed to create run cache directory",
			"Check permissions on "+s.Dir+" or set run.cache_dir.")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode run cache entry: %w", err)
	}

	// Temp file plus rename keeps the write atomic.
	tmp, err := os.CreateTemp(s.Dir, "."+e.ID+"-*.tmp")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRun,
			"Failed to write run cache",
			"Check permissions on "+s.Dir+".")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write run cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close run cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store run cache entry: %w", err)
	}
	return nil
}

// Load returns the entry for id, or ErrNotCached.
func (s *Store) Load(id string) (*Entry, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("read run cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRun,
			fmt.Sprintf("Run cache entry for %s is corrupt", id),
			"Delete "+p+" and retry.")
	}
	if e.ID == "" {
		e.ID = id
	}
	return &e, nil
}

// Recorded is one metric step the server already holds for a run.
type Recorded struct {
	Step      int
	Timestamp time.Time
	// Offset is the step's time relative to the run start.
	Offset time.Duration
}

// LoadOrRebuild returns the cached entry. When none exists it calls history
// and builds one that continues after the highest recorded step, with the
// start time the earliest step implies. A run with no history starts at
// step 0 now. The rebuilt entry is not saved.
func (s *Store) LoadOrRebuild(id string, history func() ([]Recorded, error)) (*Entry, error) {
	e, err := s.Load(id)
	if !stderrors.Is(err, ErrNotCached) {
		return e, err
	}

	recorded, err := history()
	if err != nil {
		return nil, err
	}
	e = &Entry{ID: id, StartTime: time.Now().UTC()}
	for i, r := range recorded {
		if r.Step+1 > e.Step {
			e.Step = r.Step + 1
		}
		if start := r.Timestamp.Add(-r.Offset).UTC(); i == 0 || start.Before(e.StartTime) {
			e.StartTime = start
		}
	}
	return e, nil
}

// Advance records that n more steps were sent and returns the updated entry.
func (s *Store) Advance(e *Entry, n int) error {
	e.Step += n
	return s.Save(*e)
}

// Lock serializes read-modify-write cycles on one entry across processes.
// The caller must Release the returned lock.
func (s *Store) Lock(ctx context.Context, id string) (*lock.Lock, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return lock.Acquire(ctx, strings.TrimSuffix(p, ".json")+".lock", lock.Config{
		Timeout: LockTimeout,
		Stale:   LockStale,
	})
}

// Delete removes the entry for id. A missing entry is not an error.
func (s *Store) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run cache entry: %w", err)
	}
	return nil
}

// List returns every cached entry sorted by start time. Unreadable files are skipped.
func (s *Store) List() ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.json"))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		e, err := s.Load(strings.TrimSuffix(filepath.Base(m), ".json"))
		if err != nil {
			continue
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
	return entries, nil
}
