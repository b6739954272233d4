package cli

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/simvue-io/simvue-cli/internal/util"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
	"github.com/spf13/cobra"
)

// Output formats accepted by run list.
const (
	formatTable = "table"
	formatPlain = "plain"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const (
	defaultListCount = 20
	maxCellWidth     = 48
	fallbackWidth    = 120
)

// RunListOptions selects the columns and format of run list.
type RunListOptions struct {
	Count       int
	Enumerate   bool
	Name        bool
	Status      bool
	Folder      bool
	Tags        bool
	Created     bool
	Description bool
	User        bool
	Format      string
}

var (
	listOpts          RunListOptions
	runJSONAsYAML     bool
	removeInteractive bool
)

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Long: `List recent runs, oldest first. Only ids are shown unless columns are
selected with flags.

Examples:
  simvue run list --name --status
  simvue run list --count 5 --format plain | cut -f1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), listOpts)
	},
}

var runJSONCmd = &cobra.Command{
	Use:   "json [run-id]",
	Short: "Print everything the server knows about a run",
	Long: `Print a run as JSON, or YAML with --yaml.

The run id is read from stdin when not given:
  simvue run create | simvue run json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return runJSONCommand(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), id, runJSONAsYAML)
	},
}

var runRemoveCmd = &cobra.Command{
	Use:   "remove [run-id...]",
	Short: "Delete runs from the server",
	Long: `Delete runs and all their data. Ids are read from stdin when none are given,
one or more per line.

Examples:
  simvue run remove 1a2b3c 4d5e6f
  simvue run list --count 3 --format plain | simvue run remove`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemoveCommand(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args, removeInteractive)
	},
}

func init() {
	runCmd.AddCommand(runListCmd, runJSONCmd, runRemoveCmd)

	f := runListCmd.Flags()
	f.IntVar(&listOpts.Count, "count", defaultListCount, "maximum number of runs to show")
	f.BoolVar(&listOpts.Enumerate, "enumerate", false, "number the rows")
	f.BoolVar(&listOpts.Name, "name", false, "show names")
	f.BoolVar(&listOpts.Status, "status", false, "show status")
	f.BoolVar(&listOpts.Folder, "folder", false, "show folder")
	f.BoolVar(&listOpts.Tags, "tags", false, "show tags")
	f.BoolVar(&listOpts.Created, "created", false, "show creation time")
	f.BoolVar(&listOpts.Description, "description", false, "show description")
	f.BoolVar(&listOpts.User, "user", false, "show owner")
	f.StringVar(&listOpts.Format, "format", formatTable, "output format: table, plain, json or yaml")

	runJSONCmd.Flags().BoolVar(&runJSONAsYAML, "yaml", false, "print YAML instead of JSON")
	runRemoveCmd.Flags().BoolVarP(&removeInteractive, "interactive", "i", false, "confirm each removal")
}

// columns returns the selected column names in display order.
func (o RunListOptions) columns() []string {
	cols := []string{"id"}
	add := func(on bool, name string) {
		if on {
			cols = append(cols, name)
		}
	}
	add(o.Created, "created")
	add(o.Name, "name")
	add(o.Folder, "folder")
	add(o.Tags, "tags")
	add(o.User, "user")
	add(o.Description, "description")
	add(o.Status, "status")
	return cols
}

func (o RunListOptions) validate() error {
	switch o.Format {
	case formatTable, formatPlain, formatJSON, formatYAML:
	default:
		return errors.New(errors.ErrInput,
			fmt.Sprintf("'%s' isn't an output format", o.Format),
			"Use one of table, plain, json, yaml.")
	}
	if o.Count < 1 {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("--count must be at least 1 (got %d)", o.Count),
			"")
	}
	return nil
}

func runField(r simvue.Run, col string) string {
	switch col {
	case "id":
		return r.ID
	case "created":
		return r.Created
	case "name":
		return r.Name
	case "folder":
		return r.Folder
	case "tags":
		return util.JoinOrDefault(r.Tags, "")
	case "user":
		return r.User
	case "description":
		return r.Description
	case "status":
		return r.Status
	}
	return ""
}

// listRecords builds one record per run, holding only the selected columns.
func listRecords(runs []simvue.Run, cols []string, enumerate bool) []map[string]any {
	out := make([]map[string]any, len(runs))
	for i, r := range runs {
		rec := make(map[string]any, len(cols)+1)
		if enumerate {
			rec["index"] = i
		}
		for _, c := range cols {
			if c == "tags" {
				rec[c] = append([]string{}, r.Tags...)
				continue
			}
			rec[c] = runField(r, c)
		}
		out[i] = rec
	}
	return out
}

func runListCommand(ctx context.Context, stdout, stderr io.Writer, opts RunListOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	var runs []simvue.Run
	err = ui.RunWithSpinner(stderr, "Fetching runs", func() error {
		var lerr error
		runs, lerr = a.client.ListRuns(ctx, simvue.ListOptions{Count: opts.Count})
		return lerr
	})
	if err != nil {
		return errors.Wrap(err, "Failed to list runs")
	}

	cols := opts.columns()
	if machineMode {
		return WriteJSONSuccess(stdout, listRecords(runs, cols, opts.Enumerate))
	}

	switch opts.Format {
	case formatJSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listRecords(runs, cols, opts.Enumerate))
	case formatYAML:
		return writeYAML(stdout, listRecords(runs, cols, opts.Enumerate))
	}

	titles := cols
	if opts.Enumerate {
		titles = append([]string{"#"}, cols...)
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		row := make([]string, 0, len(titles))
		if opts.Enumerate {
			row = append(row, strconv.Itoa(i))
		}
		for _, c := range cols {
			v := runField(r, c)
			if c == "status" && opts.Format == formatTable {
				v = ui.RunStatusSymbol(v) + " " + v
			}
			row = append(row, v)
		}
		rows[i] = row
	}

	if opts.Format == formatPlain {
		fmt.Fprint(stdout, ui.RenderPlainRows(rows))
		return nil
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, ui.Muted("No runs found"))
		return nil
	}
	columns := ui.FitColumns(titles, rows, maxCellWidth, writerWidth(stdout, fallbackWidth))
	fmt.Fprintln(stdout, ui.RenderSimpleTable(columns, rows))
	return nil
}

func writerWidth(w io.Writer, fallback int) int {
	if f, ok := w.(*os.File); ok {
		return ui.TerminalWidth(f, fallback)
	}
	return fallback
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func runJSONCommand(ctx context.Context, in io.Reader, stdout io.Writer, id string, asYAML bool) error {
	if id == "" {
		line, _ := bufio.NewReader(in).ReadString('\n')
		id = strings.TrimSpace(line)
		if id == "" {
			return errors.New(errors.ErrInput,
				"No run id given",
				"Pass the id as an argument or on stdin.")
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	raw, err := a.client.GetRunRaw(ctx, id)
	if err != nil {
		if stderrors.Is(err, simvue.ErrNotFound) {
			return runNotFound(err, id)
		}
		return errors.Wrap(err, fmt.Sprintf("Failed to fetch run %s", id))
	}

	if machineMode {
		return WriteJSONSuccess(stdout, raw)
	}
	if asYAML {
		return writeYAML(stdout, raw)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}

// RemoveResult lists the runs a remove call deleted and skipped.
type RemoveResult struct {
	Removed []string `json:"removed"`
	Skipped []string `json:"skipped,omitempty"`
}

func runRemoveCommand(ctx context.Context, in io.Reader, stdout io.Writer, ids []string, interactive bool) error {
	if len(ids) == 0 {
		data, err := io.ReadAll(in)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Failed to read run ids from stdin", "")
		}
		for _, line := range util.SplitLines(string(data)) {
			ids = append(ids, strings.Fields(line)...)
		}
		// Stdin held the ids, so there is nothing left to answer prompts with.
		if interactive {
			return errors.New(errors.ErrInput,
				"Can't confirm removals when ids come from stdin",
				"Pass the ids as arguments to use -i.")
		}
	}
	if len(ids) == 0 {
		return errors.New(errors.ErrInput, "No run ids given", "Pass ids as arguments or on stdin.")
	}
	if interactive && (machineMode || !isTerminalReader(in)) {
		return errors.New(errors.ErrInput,
			"-i needs an interactive terminal",
			"Drop -i to remove without prompting.")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	result := RemoveResult{Removed: []string{}}
	for _, id := range ids {
		if _, err := lookupRun(ctx, a, id); err != nil {
			return err
		}
		if interactive && !confirmRemove(id) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err := a.client.DeleteRun(ctx, id); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Failed to remove run %s", id))
		}
		if err := a.cache.Delete(id); err != nil {
			a.log.Debug("could not clear cache for %s: %v", id, err)
		}
		result.Removed = append(result.Removed, id)
		if !machineMode {
			ui.PrintSuccess(stdout, "Run '%s' removed", id)
		}
	}

	if machineMode {
		return WriteJSONSuccess(stdout, result)
	}
	return nil
}

func confirmRemove(id string) bool {
	var remove bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove run '%s'?", id)).
				Description("Its metrics and events are deleted too.").
				Value(&remove),
		),
	)
	if form.Run() != nil {
		return false
	}
	return remove
}
