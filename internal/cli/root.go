package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/simvue-io/simvue-cli/internal/logger"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	plainFlag   bool
	verboseFlag bool
	quietFlag   bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "simvue",
	Short: "Command line interface for the Simvue experiment tracker",
	Long: `Create and manage Simvue runs from the shell.

The monitor command turns any program's tabular output into run metrics:

  ./train.sh | simvue monitor --name training

Configure the server once with:

  simvue config server.url https://simvue.example.com
  simvue config server.token <token>`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyGlobalFlags()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: simvue.yaml, then ~/.config/simvue/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&plainFlag, "plain", false, "disable colors and decorations")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "only show warnings and errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func applyGlobalFlags() error {
	ui.SetPlain(plainFlag || machineMode || !ui.IsTerminal(os.Stdout))

	switch {
	case verboseFlag:
		logger.SetVerbosity(logger.VerbosityVerbose)
	case quietFlag:
		logger.SetVerbosity(logger.VerbosityQuiet)
	default:
		logger.SetVerbosity(logger.VerbosityNormal)
	}
	return nil
}

// exitError carries a process exit code through cobra's error return.
// The wrapped error has already been reported when Err is nil.
type exitError struct {
	Code int
	Err  error
}

func (e *exitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *exitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes args against rootCmd and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	code := 1
	var ee *exitError
	if stderrors.As(err, &ee) {
		code = ee.Code
		if ee.Err == nil {
			return code
		}
		err = ee.Err
	}

	if machineMode {
		_ = WriteJSONFromError(stdout, err)
		return code
	}

	fmt.Fprintln(stderr, err)
	if isUsageError(err) {
		fmt.Fprintln(stderr, "Run 'simvue --help' for usage.")
	}
	return code
}

// isUsageError checks if the error is cobra's complaint about arguments or flags.
func isUsageError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown command") ||
		strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "accepts ") ||
		strings.Contains(msg, "requires at least")
}
