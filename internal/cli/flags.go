package cli

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/system"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
	"github.com/spf13/cobra"
)

var (
	runNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-\_\s\/\.:]+$`)
	folderPattern  = regexp.MustCompile(`^/.*`)
)

// RunFlags holds the attributes shared by commands that create a run.
type RunFlags struct {
	Name        string
	Description string
	Tags        []string
	Folder      string
	// Retention is the run's time to live in seconds; 0 keeps it forever.
	Retention int
	// Environment attaches the CLI's toolchain and build to the run metadata.
	Environment bool
}

// AddRunFlags registers the run attribute flags on a command.
func AddRunFlags(cmd *cobra.Command, flags *RunFlags) {
	cmd.Flags().StringVar(&flags.Name, "name", "", "run name (generated by the server when empty)")
	cmd.Flags().StringVar(&flags.Description, "description", "", "run description")
	cmd.Flags().StringArrayVarP(&flags.Tags, "tag", "t", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&flags.Folder, "folder", "/", "folder to create the run in")
	cmd.Flags().IntVar(&flags.Retention, "retention", 0, "seconds to keep the run before deletion (0 keeps it)")
	cmd.Flags().BoolVar(&flags.Environment, "environment", false, "record the toolchain and build environment in the run metadata")
}

// Validate checks run attributes before any request is made.
func (f RunFlags) Validate() error {
	if f.Name != "" && !runNamePattern.MatchString(f.Name) {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("'%s' isn't a valid run name", f.Name),
			"Use letters, digits, spaces and - _ / . : only.")
	}
	if !folderPattern.MatchString(f.Folder) {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("'%s' isn't a valid folder", f.Folder),
			"Folders are absolute paths, like /experiments/2026.")
	}
	for _, tag := range f.Tags {
		if strings.TrimSpace(tag) == "" {
			return errors.New(errors.ErrInput,
				"Tags can't be empty",
				"Remove the empty --tag value.")
		}
	}
	if f.Retention < 0 {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("--retention can't be negative (got %d)", f.Retention),
			"Use 0 to keep the run.")
	}
	return nil
}

// Spec builds the create request for these attributes.
func (f RunFlags) Spec(status string) simvue.RunSpec {
	spec := simvue.RunSpec{
		Name:        f.Name,
		Folder:      f.Folder,
		Description: f.Description,
		Tags:        append([]string{}, f.Tags...),
		Status:      status,
	}
	if f.Retention > 0 {
		ttl := f.Retention
		spec.TTL = &ttl
	}
	if f.Environment {
		spec.Metadata = map[string]any{"environment": system.ReadEnvironment().Map()}
	}
	return spec
}

// parseJSONObject decodes a command-line JSON argument that must be an object.
func parseJSONObject(what, raw string) (map[string]any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("%s isn't valid JSON", what),
			`Quote the whole object, like '{"loss": 0.1}'.`)
	}
	if dec.More() {
		return nil, errors.New(errors.ErrInput,
			fmt.Sprintf("%s has trailing data after the JSON object", what),
			"Pass a single JSON object.")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrInput,
			fmt.Sprintf("%s must be a JSON object", what),
			`Wrap the values in braces, like '{"loss": 0.1}'.`)
	}
	return normalizeNumbers(obj), nil
}

// normalizeNumbers turns json.Number into int64 or float64, keeping the
// integer/float distinction the way the monitor pipeline does.
func normalizeNumbers(m map[string]any) map[string]any {
	for k, v := range m {
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				m[k] = i
			} else if f, err := n.Float64(); err == nil {
				m[k] = f
			}
		case map[string]any:
			m[k] = normalizeNumbers(n)
		}
	}
	return m
}
