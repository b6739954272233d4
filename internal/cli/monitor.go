package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/monitor"
	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/internal/system"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/simvue-io/simvue-cli/internal/util"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
	"github.com/spf13/cobra"
)

// finalizeTimeout bounds the status update sent after the stream ends,
// which runs even when the command's context was cancelled.
const finalizeTimeout = 15 * time.Second

var (
	monitorDelimiter string
	monitorRunFlags  RunFlags
)

// monitorCmd streams tabular stdin into run metrics
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Record metrics from tabular output on stdin",
	Long: `Create a run and record every line of stdin as one metrics update.

The first non-empty line names the metrics; each following line holds one
value per metric. Integers, floats and strings are recognised per field.
Lines with the wrong number of fields are skipped with a warning.

The run is marked completed at end of input, failed if the server rejects
an update, and terminated on Ctrl+C.

Examples:
  ./train.sh | simvue monitor --name training
  cat results.csv | simvue monitor --delimiter comma --folder /sweeps`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		// Default handling comes back after the first signal, so a second
		// Ctrl+C exits without waiting for the run to be finalized.
		go func() {
			<-ctx.Done()
			stop()
		}()
		return monitorCommand(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(),
			monitorDelimiter, monitorRunFlags)
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorDelimiter, "delimiter", "d", `\t`, `field delimiter: a single character, or \t, tab, comma, space`)
	AddRunFlags(monitorCmd, &monitorRunFlags)
}

// MonitorResult is the outcome of a monitor invocation, used for --json output.
type MonitorResult struct {
	RunID         string   `json:"run_id"`
	RunStatus     string   `json:"run_status"`
	State         string   `json:"state"`
	Header        []string `json:"header,omitempty"`
	RowsProcessed int      `json:"rows_processed"`
	RowsSkipped   int      `json:"rows_skipped"`
	Error         string   `json:"error,omitempty"`
}

func monitorCommand(ctx context.Context, in io.Reader, stdout, stderr io.Writer, delimiter string, flags RunFlags) error {
	delim, err := monitor.ParseDelimiter(delimiter)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("'%s' can't be used as a delimiter", delimiter),
			`Use a single character, or one of \t, tab, comma, space.`)
	}
	if err := flags.Validate(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	start := time.Now()
	run, err := createRun(ctx, a, flags, simvue.StatusRunning)
	if err != nil {
		return err
	}
	if !machineMode {
		fmt.Fprintln(stdout, run.ID)
	}

	entry := &runcache.Entry{ID: run.ID, Name: run.Name, StartTime: start.UTC()}
	if err := a.cache.Save(*entry); err != nil {
		a.log.Warn("run %s will not be resumable: %v", run.ID, err)
	}

	sess := monitor.NewSession(simvue.NewRunHandle(a.client, run.ID, start), monitor.Options{
		Delimiter: delim,
		StartStep: entry.Step,
		Logger:    a.log,
	})
	sum := sess.Run(ctx, in)

	entry.Step = sum.NextStep
	if err := a.cache.Save(*entry); err != nil {
		a.log.Debug("could not store final step for %s: %v", run.ID, err)
	}

	interrupted := ctx.Err() != nil
	status := finalRunStatus(sum, interrupted)
	finalizeRun(ctx, a, run.ID, status, interrupted)

	result := MonitorResult{
		RunID:         run.ID,
		RunStatus:     status,
		State:         sum.State.String(),
		Header:        sum.Header,
		RowsProcessed: sum.RowsProcessed,
		RowsSkipped:   sum.RowsSkipped,
	}

	failure := monitorFailure(sum, interrupted)
	if failure != nil {
		result.Error = sum.Err.Error()
	}

	if machineMode {
		if failure != nil {
			_ = WriteJSONFailure(stdout, result, failure)
			return &exitError{Code: 1}
		}
		return WriteJSONSuccess(stdout, result)
	}

	renderMonitorSummary(stderr, result)
	if failure != nil {
		return &exitError{Code: 1, Err: failure}
	}
	return nil
}

// createRun creates the folder when needed, then the run with this machine's
// description attached. Flags must already be validated.
func createRun(ctx context.Context, a *app, flags RunFlags, status string) (*simvue.Run, error) {
	spec := flags.Spec(status)
	info := system.Collect(ctx)
	spec.System = info.Map()
	a.log.Debug("system: %s", info.Summary())

	if spec.Folder != "/" {
		if err := a.client.CreateFolder(ctx, spec.Folder); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Failed to create folder %s", spec.Folder))
		}
	}

	run, err := a.client.CreateRun(ctx, spec)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create run")
	}
	a.log.Debug("created run %s (%s)", run.ID, run.Name)
	return run, nil
}

func finalRunStatus(sum monitor.Summary, interrupted bool) string {
	switch {
	case interrupted:
		return simvue.StatusTerminated
	case sum.State == monitor.StateFailed:
		return simvue.StatusFailed
	default:
		return simvue.StatusCompleted
	}
}

// finalizeRun moves the run to its terminal status. Failures are logged, not
// returned: the stream outcome decides the exit code.
func finalizeRun(ctx context.Context, a *app, runID, status string, interrupted bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	var err error
	if interrupted {
		err = a.client.AbortRun(ctx, runID, "Interrupted while monitoring")
	} else {
		err = a.client.SetStatus(ctx, runID, status)
	}
	if err != nil {
		a.log.Warn("could not mark run %s as %s: %v", runID, status, err)
		return
	}
	if err := a.cache.Delete(runID); err != nil {
		a.log.Debug("could not clear cache for %s: %v", runID, err)
	}
}

// monitorFailure converts a failed session into the error the command reports.
func monitorFailure(sum monitor.Summary, interrupted bool) error {
	if sum.State != monitor.StateFailed {
		return nil
	}
	if interrupted && stderrors.Is(sum.Err, context.Canceled) {
		return errors.WrapWithCode(sum.Err, errors.ErrStream,
			"Monitoring interrupted",
			"The run was marked terminated.")
	}

	var cfgErr *monitor.ConfigurationError
	if stderrors.As(sum.Err, &cfgErr) {
		return errors.WrapWithCode(sum.Err, errors.ErrInput,
			"The header line can't be used as metric names",
			"Metric names must be unique and non-empty. Check the first line and --delimiter.")
	}

	var txErr *monitor.TransmissionError
	if stderrors.As(sum.Err, &txErr) {
		return errors.WrapWithCode(sum.Err, errors.ErrStream,
			fmt.Sprintf("The server rejected metrics after %d %s", sum.RowsProcessed, util.Pluralize(sum.RowsProcessed, "row", "rows")),
			"Check the server is reachable with 'simvue ping'. The run was marked failed.")
	}

	return errors.WrapWithCode(sum.Err, errors.ErrStream,
		"Reading input failed",
		"The run was marked failed.")
}

func renderMonitorSummary(w io.Writer, r MonitorResult) {
	line := fmt.Sprintf("%d %s recorded", r.RowsProcessed, util.Pluralize(r.RowsProcessed, "row", "rows"))
	if r.RowsSkipped > 0 {
		line += fmt.Sprintf(", %d skipped", r.RowsSkipped)
	}
	line += " " + ui.Muted("(run "+r.RunID+", "+r.RunStatus+")")

	switch r.RunStatus {
	case simvue.StatusCompleted:
		ui.PrintSuccess(w, "%s", line)
	case simvue.StatusTerminated:
		ui.PrintWarning(w, "%s", line)
	default:
		ui.PrintFailure(w, "%s", line)
	}
}
