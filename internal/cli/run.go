package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
	"github.com/spf13/cobra"
)

const defaultAbortReason = "Manual termination via CLI"

var (
	runCreateFlags RunFlags
	runCreateOnly  bool
	runAbortReason string
)

// runCmd groups the run lifecycle commands
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create, update and inspect runs",
	Long: `Create, update and inspect Simvue runs.

A run created here can be fed from several shell steps:

  id=$(simvue run create --name sweep-3)
  simvue run log.metrics "$id" '{"loss": 0.31}'
  simvue run log.event "$id" "checkpoint saved"
  simvue run close "$id"`,
}

var runCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a run and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreateCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), runCreateFlags, runCreateOnly)
	},
}

var runCloseCmd = &cobra.Command{
	Use:   "close <run-id>",
	Short: "Mark a run as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCloseCommand(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var runAbortCmd = &cobra.Command{
	Use:   "abort <run-id>",
	Short: "Terminate a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAbortCommand(cmd.Context(), cmd.OutOrStdout(), args[0], runAbortReason)
	},
}

var runLogMetricsCmd = &cobra.Command{
	Use:   "log.metrics <run-id> <json>",
	Short: "Record one step of metrics",
	Long: `Record one step of metrics on a run.

Steps count up from 0 per run on this machine, so successive calls land on
successive steps. A run created elsewhere continues after the highest step
the server holds. Closed runs are refused.

Example:
  simvue run log.metrics "$id" '{"loss": 0.31, "epoch": 4}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogMetricsCommand(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
	},
}

var runLogEventCmd = &cobra.Command{
	Use:   "log.event <run-id> <message>",
	Short: "Record an event message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogEventCommand(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
	},
}

var runMetadataCmd = &cobra.Command{
	Use:   "metadata <run-id> <json>",
	Short: "Update run metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetadataCommand(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runCreateCmd, runCloseCmd, runAbortCmd, runLogMetricsCmd, runLogEventCmd, runMetadataCmd)

	runCreateCmd.Flags().BoolVar(&runCreateOnly, "create-only", false, "create the run without starting it")
	AddRunFlags(runCreateCmd, &runCreateFlags)

	runAbortCmd.Flags().StringVar(&runAbortReason, "reason", defaultAbortReason, "reason recorded on the run")
}

// RunResult is the --json payload of commands acting on a single run.
type RunResult struct {
	RunID  string `json:"run_id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
	Step   *int   `json:"step,omitempty"`
}

func runCreateCommand(ctx context.Context, stdout, stderr io.Writer, flags RunFlags, createOnly bool) error {
	if err := flags.Validate(); err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	status := simvue.StatusRunning
	if createOnly {
		status = simvue.StatusCreated
	}

	var run *simvue.Run
	err = ui.RunWithSpinner(stderr, "Creating run", func() error {
		var cerr error
		run, cerr = createRun(ctx, a, flags, status)
		return cerr
	})
	if err != nil {
		return err
	}

	entry := runcache.Entry{ID: run.ID, Name: run.Name, StartTime: time.Now().UTC()}
	if err := a.cache.Save(entry); err != nil {
		a.log.Warn("steps for run %s will restart at 0: %v", run.ID, err)
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: run.ID, Name: run.Name, Status: status})
	}
	fmt.Fprintln(stdout, run.ID)
	return nil
}

// lookupRun fetches a run, turning a 404 into an error that names the id.
func lookupRun(ctx context.Context, a *app, id string) (*simvue.Run, error) {
	run, err := a.client.GetRun(ctx, id)
	if stderrors.Is(err, simvue.ErrNotFound) {
		return nil, runNotFound(err, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Failed to fetch run %s", id))
	}
	return run, nil
}

func runNotFound(err error, id string) error {
	return errors.WrapWithCode(err, errors.ErrRun,
		fmt.Sprintf("Run '%s' not found", id),
		"List runs with 'simvue run list'.")
}

func runCloseCommand(ctx context.Context, stdout io.Writer, id string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	run, err := lookupRun(ctx, a, id)
	if err != nil {
		return err
	}
	if simvue.IsTerminal(run.Status) {
		return errors.New(errors.ErrRun,
			fmt.Sprintf("Run '%s' is already %s", id, run.Status),
			"Only created or running runs can be closed.")
	}

	if err := a.client.SetStatus(ctx, id, simvue.StatusCompleted); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Failed to close run %s", id))
	}
	if err := a.cache.Delete(id); err != nil {
		a.log.Debug("could not clear cache for %s: %v", id, err)
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: id, Name: run.Name, Status: simvue.StatusCompleted})
	}
	fmt.Fprintf(stdout, "%s %s\n", id, ui.RenderRunStatus(simvue.StatusCompleted))
	return nil
}

func runAbortCommand(ctx context.Context, stdout io.Writer, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = defaultAbortReason
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	run, err := lookupRun(ctx, a, id)
	if err != nil {
		return err
	}

	if err := a.client.AbortRun(ctx, id, reason); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Failed to abort run %s", id))
	}
	if err := a.cache.Delete(id); err != nil {
		a.log.Debug("could not clear cache for %s: %v", id, err)
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: id, Name: run.Name, Status: simvue.StatusTerminated})
	}
	fmt.Fprintf(stdout, "%s %s %s\n", id, ui.RenderRunStatus(simvue.StatusTerminated), ui.Muted("("+reason+")"))
	return nil
}

func runLogMetricsCommand(ctx context.Context, stdout io.Writer, id, raw string) error {
	values, err := parseJSONObject("Metrics", raw)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.New(errors.ErrInput,
			"No metrics given",
			`Pass at least one value, like '{"loss": 0.1}'.`)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	l, err := a.cache.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			a.log.Warn("%v", err)
		}
	}()

	entry, err := activeRunEntry(ctx, a, id)
	if err != nil {
		return err
	}

	handle := simvue.NewRunHandle(a.client, id, entry.StartTime)
	if err := handle.SendMetrics(ctx, values, time.Now(), entry.Step); err != nil {
		if stderrors.Is(err, simvue.ErrNotFound) {
			return runNotFound(err, id)
		}
		return errors.Wrap(err, fmt.Sprintf("Failed to send metrics to run %s", id))
	}

	step := entry.Step
	if err := a.cache.Advance(entry, 1); err != nil {
		a.log.Warn("step counter for %s not saved, the next call will reuse step %d: %v", id, step, err)
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: id, Step: &step})
	}
	a.log.Debug("sent step %d to %s", step, id)
	return nil
}

// activeRunEntry returns the cache entry of a run that can still take
// metrics. Runs the server no longer has, or has closed, lose their entry.
// A run without an entry, such as one created by another client, continues
// from the metrics the server already holds.
func activeRunEntry(ctx context.Context, a *app, id string) (*runcache.Entry, error) {
	run, err := lookupRun(ctx, a, id)
	if err != nil {
		if stderrors.Is(err, simvue.ErrNotFound) {
			dropCachedRun(a, id)
		}
		return nil, err
	}
	if simvue.IsTerminal(run.Status) {
		dropCachedRun(a, id)
		return nil, errors.New(errors.ErrRun,
			fmt.Sprintf("Run '%s' is already %s", id, run.Status),
			"Create a new run with 'simvue run create'.")
	}

	return a.cache.LoadOrRebuild(id, func() ([]runcache.Recorded, error) {
		sets, err := a.client.GetMetrics(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Failed to fetch recorded metrics of run %s", id))
		}
		recorded := make([]runcache.Recorded, 0, len(sets))
		for _, m := range sets {
			ts, err := simvue.ParseTimestamp(m.Timestamp)
			if err != nil {
				a.log.Debug("ignoring step %d of %s with timestamp %q", m.Step, id, m.Timestamp)
				continue
			}
			recorded = append(recorded, runcache.Recorded{
				Step:      m.Step,
				Timestamp: ts,
				Offset:    time.Duration(m.Time * float64(time.Second)),
			})
		}
		return recorded, nil
	})
}

func dropCachedRun(a *app, id string) {
	if err := a.cache.Delete(id); err != nil {
		a.log.Debug("could not clear cache for %s: %v", id, err)
	}
}

func runLogEventCommand(ctx context.Context, stdout io.Writer, id, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New(errors.ErrInput, "Event message is empty", "Pass the message as the second argument.")
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	handle := simvue.NewRunHandle(a.client, id, time.Now())
	if err := handle.LogEvent(ctx, message); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Failed to log event on run %s", id))
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: id})
	}
	return nil
}

func runMetadataCommand(ctx context.Context, stdout io.Writer, id, raw string) error {
	metadata, err := parseJSONObject("Metadata", raw)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	if err := a.client.UpdateRun(ctx, id, simvue.RunUpdate{Metadata: metadata}); err != nil {
		if stderrors.Is(err, simvue.ErrNotFound) {
			return runNotFound(err, id)
		}
		return errors.Wrap(err, fmt.Sprintf("Failed to update metadata of run %s", id))
	}

	if machineMode {
		return WriteJSONSuccess(stdout, RunResult{RunID: id})
	}
	return nil
}
