package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

// RunGetter looks up a run on the server.
type RunGetter interface {
	GetRun(ctx context.Context, id string) (*simvue.Run, error)
}

// CacheDirCheck verifies the run cache directory is writable.
type CacheDirCheck struct {
	Dir string
}

func (c *CacheDirCheck) Name() string     { return "cache_dir" }
func (c *CacheDirCheck) Category() string { return CategoryCache }

func (c *CacheDirCheck) Run(_ context.Context) CheckResult {
	info, err := os.Stat(c.Dir)
	if os.IsNotExist(err) {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Cache directory doesn't exist yet: " + c.Dir,
			Suggestion: "It is created by the first 'simvue run create'",
			Fixable:    true,
		}
	}
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Can't access cache directory: %v", err),
		}
	}
	if !info.IsDir() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    c.Dir + " is not a directory",
			Suggestion: "Point run.cache_dir at a directory",
		}
	}

	probe, err := os.CreateTemp(c.Dir, ".probe-*")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cache directory is not writable: " + c.Dir,
			Suggestion: "Fix its permissions or set run.cache_dir",
		}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Cache directory: " + c.Dir,
	}
}

func (c *CacheDirCheck) Fix(_ context.Context) error {
	return os.MkdirAll(c.Dir, 0o755)
}

// StaleRunsCheck finds cached runs the server reports as closed or deleted.
// Their cache entries can no longer be used by log.metrics.
type StaleRunsCheck struct {
	Store  *runcache.Store
	Client RunGetter // nil skips the server comparison
}

func (c *StaleRunsCheck) Name() string     { return "cache_runs" }
func (c *StaleRunsCheck) Category() string { return CategoryCache }

func (c *StaleRunsCheck) Run(ctx context.Context) CheckResult {
	entries, err := c.Store.List()
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Can't list cached runs: %v", err),
		}
	}
	if c.Client == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%d cached run%s (not compared with the server)", len(entries), pluralize(len(entries))),
		}
	}

	stale, err := c.stale(ctx, entries)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusWarn,
			Message: fmt.Sprintf("Couldn't compare cached runs with the server: %v", err),
		}
	}
	if len(stale) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%d of %d cached run%s closed or deleted on the server", len(stale), len(entries), pluralize(len(entries))),
			Suggestion: "Run 'simvue doctor --fix' to drop them from the cache",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d cached run%s, all active", len(entries), pluralize(len(entries))),
	}
}

// Fix removes the stale entries.
func (c *StaleRunsCheck) Fix(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	entries, err := c.Store.List()
	if err != nil {
		return err
	}
	stale, err := c.stale(ctx, entries)
	if err != nil {
		return err
	}
	for _, id := range stale {
		if err := c.Store.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *StaleRunsCheck) stale(ctx context.Context, entries []runcache.Entry) ([]string, error) {
	var ids []string
	for _, e := range entries {
		run, err := c.Client.GetRun(ctx, e.ID)
		switch {
		case stderrors.Is(err, simvue.ErrNotFound):
			ids = append(ids, e.ID)
		case err != nil:
			return nil, err
		case simvue.IsTerminal(run.Status):
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}
