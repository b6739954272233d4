package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/simvue-io/simvue-cli/internal/system"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/spf13/cobra"
)

const (
	aboutTimeout  = 10 * time.Second
	maxAboutWidth = 100
	unavailable   = "unavailable"
)

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show CLI, server and machine details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return aboutCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(aboutCmd)
}

// AboutInfo is the --json payload of about.
type AboutInfo struct {
	CLIVersion    string `json:"cli_version"`
	GoVersion     string `json:"go_version"`
	ServerURL     string `json:"server_url,omitempty"`
	ServerVersion string `json:"server_version"`
	User          string `json:"user"`
	Host          string `json:"host"`
}

// gatherAbout fetches server and machine details concurrently. Each part
// degrades to "unavailable" on its own; a missing server config only blanks
// the server fields.
func gatherAbout(ctx context.Context) AboutInfo {
	info := AboutInfo{
		CLIVersion:    formatVersion(version),
		GoVersion:     runtime.Version(),
		ServerVersion: unavailable,
		User:          unavailable,
		Host:          unavailable,
	}

	ctx, cancel := context.WithTimeout(ctx, aboutTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		info.Host = system.Collect(ctx).Summary()
		return nil
	})

	a, err := newApp()
	if err == nil {
		info.ServerURL = a.client.URL()
		g.Go(func() error {
			v, err := a.client.Version(ctx)
			if err != nil {
				a.log.Debug("server version: %v", err)
				return nil
			}
			info.ServerVersion = v
			return nil
		})
		g.Go(func() error {
			u, err := a.client.WhoAmI(ctx)
			if err != nil {
				a.log.Debug("whoami: %v", err)
				return nil
			}
			info.User = fmt.Sprintf("%s (%s)", u.Username, u.Tenant)
			return nil
		})
	}
	_ = g.Wait()
	return info
}

func aboutCommand(ctx context.Context, stdout io.Writer) error {
	info := gatherAbout(ctx)
	if machineMode {
		return WriteJSONSuccess(stdout, info)
	}

	width := writerWidth(stdout, 80)
	if width > maxAboutWidth {
		width = maxAboutWidth
	}
	rule := ui.Muted(strings.Repeat("=", width))
	title := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorInfo).Width(width).Align(lipgloss.Center)

	server := info.ServerURL
	if server == "" {
		server = "not configured"
	}

	fmt.Fprintln(stdout, title.Render("Simvue CLI"))
	fmt.Fprintln(stdout, ui.Muted(lipgloss.PlaceHorizontal(width, lipgloss.Center, "Provided under the Apache-2.0 License")))
	fmt.Fprintln(stdout, rule)
	fmt.Fprint(stdout, ui.RenderKeyValues([][2]string{
		{"CLI Version", info.CLIVersion},
		{"Go Version", info.GoVersion},
		{"Server", server},
		{"Server Version", info.ServerVersion},
		{"User", info.User},
		{"Host", info.Host},
	}))
	fmt.Fprintln(stdout, rule)
	return nil
}
