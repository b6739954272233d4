package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simvue-io/simvue-cli/internal/clean"
	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/simvue-io/simvue-cli/internal/util"
)

var (
	purgeDryRun bool
	purgeYes    bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all local simvue files",
	Long: `Remove the run cache, the ~/.simvue directory and the global config.

Project simvue.yaml files are left alone. Asks for confirmation when run
from a terminal unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return purgeCommand(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), purgeDryRun, purgeYes)
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "list what would be removed without deleting")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "don't ask for confirmation")
}

// PurgeResult is the --json payload of purge.
type PurgeResult struct {
	Targets []clean.Target `json:"targets"`
	Removed []string       `json:"removed"`
	DryRun  bool           `json:"dry_run,omitempty"`
}

func purgeCommand(stdin io.Reader, stdout, stderr io.Writer, dryRun, yes bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't find your home directory",
			"Set HOME and try again.")
	}

	loc := clean.Locations{Home: home, CacheDir: config.DefaultConfig().Run.CacheDir}
	if cfg, err := loadConfig(); err == nil && cfg.Run.CacheDir != "" {
		loc.CacheDir = cfg.Run.CacheDir
	}

	targets, err := clean.Discover(loc)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRun,
			"Failed to look for local simvue files",
			"Check permissions on "+home)
	}
	result := PurgeResult{Targets: targets, Removed: []string{}, DryRun: dryRun}

	if len(targets) == 0 {
		if machineMode {
			return WriteJSONSuccess(stdout, result)
		}
		fmt.Fprintln(stdout, "Nothing to do.")
		return nil
	}

	if !machineMode {
		for _, t := range targets {
			fmt.Fprintf(stdout, "  %s  %s\n", t.Path, ui.Muted(fmt.Sprintf("(%s, %s)", t.Kind, clean.FormatSize(t.Size))))
		}
		fmt.Fprintln(stdout)
	}

	if dryRun {
		if machineMode {
			return WriteJSONSuccess(stdout, result)
		}
		fmt.Fprintf(stdout, "%s Dry run: would remove %d %s\n",
			ui.SymbolPending, len(targets), util.Pluralize(len(targets), "item", "items"))
		return nil
	}

	if !yes && !machineMode && isTerminalReader(stdin) && !confirmPurge(len(targets)) {
		fmt.Fprintln(stdout, "Cancelled.")
		return nil
	}

	removed, errs := clean.Remove(loc, targets)
	if removed != nil {
		result.Removed = removed
	}
	if len(errs) > 0 {
		for _, e := range errs {
			ui.PrintWarning(stderr, "%v", e)
		}
		return errors.New(errors.ErrRun,
			fmt.Sprintf("Failed to remove %d %s", len(errs), util.Pluralize(len(errs), "item", "items")),
			"Check permissions and remove them by hand.")
	}

	if machineMode {
		return WriteJSONSuccess(stdout, result)
	}
	ui.PrintSuccess(stdout, "Simvue user files deleted successfully.")
	return nil
}

// isTerminalReader reports whether r is a file attached to a terminal.
func isTerminalReader(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && ui.IsTerminal(f)
}

func confirmPurge(n int) bool {
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove %d %s?", n, util.Pluralize(n, "item", "items"))).
				Description("This cannot be undone").
				Value(&confirm),
		),
	)
	if form.Run() != nil {
		return false
	}
	return confirm
}
