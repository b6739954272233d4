// Package lock provides a cross-process lock on the local filesystem.
//
// A lock is a directory: mkdir is atomic, so whoever creates it holds the
// lock. The holder writes info.json inside so waiters can report who holds
// it and remove it once it is older than the stale threshold.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
)

// DefaultPoll is the wait between attempts on a held lock.
const DefaultPoll = 50 * time.Millisecond

const infoFileName = "info.json"

// Config controls how Acquire treats a held lock.
type Config struct {
	Timeout time.Duration // how long to wait; zero tries once
	Stale   time.Duration // locks older than this are broken; zero never
	Poll    time.Duration // zero selects DefaultPoll
}

// Lock is an acquired lock.
type Lock struct {
	Dir  string    // the lock directory
	Info *LockInfo // info about the holder (us)
}

// Acquire takes the lock at dir, waiting up to cfg.Timeout while another
// process holds it. The parent of dir must be creatable.
func Acquire(ctx context.Context, dir string, cfg Config) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRun,
			"Failed to create lock directory",
			"Check permissions on "+filepath.Dir(dir))
	}

	poll := cfg.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	infoFile := filepath.Join(dir, infoFileName)
	deadline := time.Now().Add(cfg.Timeout)

	for {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return claim(dir, infoFile)
		}
		if !os.IsExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrRun,
				"Failed to create lock "+dir,
				"Check permissions on "+filepath.Dir(dir))
		}

		if isLockStale(infoFile, cfg.Stale) {
			if os.RemoveAll(dir) == nil {
				continue
			}
		}

		if cfg.Timeout <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrLocked, readLockHolder(infoFile))
		}
		if time.Now().After(deadline) {
			return nil, errors.WrapWithCode(ErrLocked, errors.ErrRun,
				fmt.Sprintf("Timed out waiting for lock after %s", cfg.Timeout),
				fmt.Sprintf("Lock held by: %s. If that process is gone, remove %s.", readLockHolder(infoFile), dir))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func claim(dir, infoFile string) (*Lock, error) {
	info := NewLockInfo()
	data, err := info.Marshal()
	if err == nil {
		err = os.WriteFile(infoFile, data, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errors.WrapWithCode(err, errors.ErrRun,
			"Failed to write lock info file",
			"Check disk space and permissions on "+dir)
	}
	return &Lock{Dir: dir, Info: info}, nil
}

// Release removes the lock, allowing others to acquire it.
func (l *Lock) Release() error {
	if l == nil || l.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(l.Dir); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Holder returns who holds the lock at dir, if readable.
func Holder(dir string) string {
	return readLockHolder(filepath.Join(dir, infoFileName))
}

// isLockStale reports whether the holder's info is older than threshold.
// A lock whose info can't be read yet is never stale; its holder may be
// between mkdir and writing the file.
func isLockStale(infoFile string, threshold time.Duration) bool {
	if threshold <= 0 {
		return false
	}
	data, err := os.ReadFile(infoFile)
	if err != nil {
		return false
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return false
	}
	return info.Age() > threshold
}

func readLockHolder(infoFile string) string {
	data, err := os.ReadFile(infoFile)
	if stderrors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return "unknown"
	}
	if err != nil {
		return "unknown (" + err.Error() + ")"
	}

	info, err := ParseLockInfo(data)
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return info.String()
}
