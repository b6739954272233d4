package runcache

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs"))
	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(Entry{ID: "abc", Name: "training", StartTime: start, Step: 4}))

	e, err := s.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, &Entry{ID: "abc", Name: "training", StartTime: start, Step: 4}, e)
}

func TestLoad_Missing(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Load("nope")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	_, err := New(dir).Load("bad")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRun))
}

func noHistory() ([]Recorded, error) { return nil, nil }

func TestLoadOrRebuildWithoutHistory(t *testing.T) {
	s := New(t.TempDir())

	e, err := s.LoadOrRebuild("fresh", noHistory)
	require.NoError(t, err)
	assert.Equal(t, "fresh", e.ID)
	assert.Zero(t, e.Step)
	assert.False(t, e.StartTime.IsZero())

	_, err = s.Load("fresh")
	assert.ErrorIs(t, err, ErrNotCached, "LoadOrRebuild must not write")
}

func TestLoadOrRebuildContinuesRecordedSteps(t *testing.T) {
	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	recorded := []Recorded{
		{Step: 3, Timestamp: start.Add(30 * time.Second), Offset: 30 * time.Second},
		{Step: 7, Timestamp: start.Add(70 * time.Second), Offset: 70 * time.Second},
		{Step: 0, Timestamp: start.Add(2 * time.Second), Offset: 2 * time.Second},
	}

	e, err := New(t.TempDir()).LoadOrRebuild("r1", func() ([]Recorded, error) { return recorded, nil })
	require.NoError(t, err)
	assert.Equal(t, 8, e.Step)
	assert.True(t, start.Equal(e.StartTime), "got %s", e.StartTime)
}

func TestLoadOrRebuildPrefersCache(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save(Entry{ID: "r1", Step: 4}))

	e, err := s.LoadOrRebuild("r1", func() ([]Recorded, error) {
		t.Fatal("history must not be fetched for a cached run")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Step)
}

func TestLoadOrRebuildHistoryError(t *testing.T) {
	boom := stderrors.New("server down")

	_, err := New(t.TempDir()).LoadOrRebuild("r1", func() ([]Recorded, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestAdvance(t *testing.T) {
	s := New(t.TempDir())
	e := &Entry{ID: "r1", Step: 2}

	require.NoError(t, s.Advance(e, 3))
	assert.Equal(t, 5, e.Step)

	got, err := s.Load("r1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Step)
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save(Entry{ID: "r1"}))

	require.NoError(t, s.Delete("r1"))
	require.NoError(t, s.Delete("r1"))

	_, err := s.Load("r1")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestInvalidIDs(t *testing.T) {
	s := New(t.TempDir())

	for _, id := range []string{"", ".", "..", "../escape", `a\b`} {
		t.Run(id, func(t *testing.T) {
			err := s.Save(Entry{ID: id})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrInput))
		})
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(Entry{ID: "late", StartTime: base.Add(time.Hour)}))
	require.NoError(t, s.Save(Entry{ID: "early", StartTime: base}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0o644))

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "early", entries[0].ID)
	assert.Equal(t, "late", entries[1].ID)
}

func TestList_MissingDir(t *testing.T) {
	entries, err := New(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLockGuardsEntry(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs"))
	ctx := context.Background()

	l, err := s.Lock(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, s.Save(Entry{ID: "abc", StartTime: time.Now()}))

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the lock directory is not an entry")

	old := LockTimeout
	LockTimeout = 0
	t.Cleanup(func() { LockTimeout = old })
	_, err = s.Lock(ctx, "abc")
	assert.ErrorIs(t, err, lock.ErrLocked)

	require.NoError(t, l.Release())
	l, err = s.Lock(ctx, "abc")
	require.NoError(t, err)
	assert.NoError(t, l.Release())

	_, err = s.Lock(ctx, "../x")
	assert.True(t, errors.IsCode(err, errors.ErrInput))
}
