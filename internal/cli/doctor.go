package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/doctor"
	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/internal/ui"
)

const doctorTimeout = 15 * time.Second

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config, server connection and run cache",
	Long: `Run diagnostics on the local setup.

Checks that a config is found and valid, that the server answers and
accepts the token, and that the run cache is usable. With --fix, creates
a missing cache directory and drops cached runs the server has closed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), doctorFix)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
}

// DoctorOutput is the --json payload of doctor.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput holds the results of one category.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput counts results by status.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

func doctorCommand(ctx context.Context, stdout io.Writer, fix bool) error {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	checks := collectChecks()
	results := doctor.RunAll(ctx, checks)
	if fix {
		results = attemptFixes(ctx, checks, results)
	}

	output := buildDoctorOutput(checks, results)
	if machineMode {
		if err := WriteJSONSuccess(stdout, output); err != nil {
			return err
		}
	} else {
		renderDoctorText(stdout, checks, results, fix)
	}

	if doctor.HasFailures(results) {
		return &exitError{Code: 1}
	}
	return nil
}

// collectChecks builds every check. Server checks get a nil client when the
// config can't produce one; they then report themselves as not checked.
func collectChecks() []doctor.Check {
	checks := []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: cfgFile},
		&doctor.ConfigValidCheck{ConfigPath: cfgFile},
	}

	cacheDir := config.DefaultConfig().Run.CacheDir
	if cfg, err := loadConfig(); err == nil && cfg.Run.CacheDir != "" {
		cacheDir = cfg.Run.CacheDir
	}

	server := &doctor.ServerCheck{}
	auth := &doctor.AuthCheck{}
	stale := &doctor.StaleRunsCheck{Store: runcache.New(cacheDir)}
	if a, err := newApp(); err == nil {
		server.Client = a.client
		server.URL = a.client.URL()
		auth.Client = a.client
		stale.Client = a.client
	}

	return append(checks, server, auth, &doctor.CacheDirCheck{Dir: cacheDir}, stale)
}

// attemptFixes runs Fix on fixable issues and re-runs those checks.
func attemptFixes(ctx context.Context, checks []doctor.Check, results []doctor.CheckResult) []doctor.CheckResult {
	for i, result := range results {
		if !result.Fixable || result.Status == doctor.StatusPass {
			continue
		}
		if err := checks[i].Fix(ctx); err == nil {
			results[i] = checks[i].Run(ctx)
		}
	}
	return results
}

func buildDoctorOutput(checks []doctor.Check, results []doctor.CheckResult) DoctorOutput {
	grouped := doctor.GroupByCategory(checks)
	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(grouped))}
	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}
		co := CategoryOutput{Name: cat}
		for _, idx := range indices {
			co.Results = append(co.Results, results[idx])
		}
		output.Categories = append(output.Categories, co)
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

func renderDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult, fixed bool) {
	header := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, header.Render("Simvue Diagnostic Report"))
	fmt.Fprintln(w)

	grouped := doctor.GroupByCategory(checks)
	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}
		fmt.Fprintln(w, header.Render(cat))
		for _, idx := range indices {
			renderCheckResult(w, results[idx])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	if !doctor.HasIssues(results) {
		ui.PrintSuccess(w, "%s", doctor.Summary(results))
		return
	}
	if doctor.HasFailures(results) {
		ui.PrintFailure(w, "%s", doctor.Summary(results))
	} else {
		ui.PrintWarning(w, "%s", doctor.Summary(results))
	}
	if doctor.FixableCount(results) > 0 && !fixed {
		fmt.Fprintf(w, "\n  Run with %s to attempt automatic fixes where possible.\n", ui.Muted("--fix"))
	}
}

func renderCheckResult(w io.Writer, result doctor.CheckResult) {
	var symbol string
	var style lipgloss.Style

	switch result.Status {
	case doctor.StatusPass:
		symbol = ui.SymbolComplete
		style = lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	case doctor.StatusWarn:
		symbol = ui.SymbolComplete
		style = lipgloss.NewStyle().Foreground(ui.ColorWarning)
	default:
		symbol = ui.SymbolFail
		style = lipgloss.NewStyle().Foreground(ui.ColorError)
	}

	fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)
	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(w, "    %s\n", ui.Muted(line))
		}
	}
}
