package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/spf13/cobra"
)

var configGlobal bool

// configCmd writes server settings to a config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Store server settings",
	Long: `Store server settings in simvue.yaml in the current directory, or in
~/.config/simvue/config.yaml with --global.

Examples:
  simvue config server.url https://simvue.example.com
  simvue config --global server.token <token>`,
}

var configURLCmd = &cobra.Command{
	Use:   "server.url <url>",
	Short: "Set the server URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetCommand(cmd.OutOrStdout(), "server.url", args[0], configGlobal)
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "server.token <token>",
	Short: "Set the access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetCommand(cmd.OutOrStdout(), "server.token", args[0], configGlobal)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configURLCmd, configTokenCmd)
	configCmd.PersistentFlags().BoolVar(&configGlobal, "global", false, "write the global config instead of ./simvue.yaml")
}

// ConfigResult is the --json payload of config.
type ConfigResult struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

func configSetCommand(stdout io.Writer, key, value string, global bool) error {
	if !config.SettableKeys[key] {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("'%s' can't be set from the command line", key),
			"Edit the config file directly.")
	}
	value = strings.TrimSpace(value)
	if err := checkConfigValue(key, value); err != nil {
		return err
	}

	path, err := configTargetPath(global)
	if err != nil {
		return err
	}
	if err := config.SetValue(path, key, value); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write %s", path),
			"Check the file is valid YAML and writable.")
	}

	if machineMode {
		return WriteJSONSuccess(stdout, ConfigResult{Key: key, Path: path})
	}
	ui.PrintSuccess(stdout, "Wrote %s to %s", key, path)
	return nil
}

func checkConfigValue(key, value string) error {
	if value == "" {
		return errors.New(errors.ErrInput, fmt.Sprintf("%s can't be empty", key), "")
	}
	if key != "server.url" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("'%s' isn't a server URL", value),
			"Use the full address, like https://simvue.example.com.")
	}
	return nil
}

// configTargetPath picks the file to write: the global file, the --config
// file, or simvue.yaml in the working directory.
func configTargetPath(global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Can't find your home directory",
				"Set HOME, or write a local config without --global.")
		}
		return config.GlobalPath(home), nil
	}
	if cfgFile != "" {
		return cfgFile, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Can't read the working directory", "")
	}
	return config.LocalPath(cwd), nil
}
