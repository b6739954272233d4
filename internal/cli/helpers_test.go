package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simvue-io/simvue-cli/internal/config"
	svtest "github.com/simvue-io/simvue-cli/pkg/simvue/testing"
)

const testToken = "test-token"

// testEnv is a working directory with a simvue.yaml pointing at a fake server.
type testEnv struct {
	server   *svtest.FakeServer
	dir      string
	home     string
	cacheDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := svtest.NewFakeServer()
	srv.Token = testToken
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv("SIMVUE_DEBUG", "")

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	cacheDir := filepath.Join(dir, "runs")
	cfg := fmt.Sprintf(`version: 1
server:
  url: %s
  token: %s
  retries: 0
run:
  cache_dir: %s
`, srv.URL(), testToken, cacheDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(cfg), 0o600))
	t.Chdir(dir)

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	return &testEnv{server: srv, dir: dir, home: home, cacheDir: cacheDir}
}

// exec runs the CLI with stdin and returns the exit code and both outputs.
func (e *testEnv) exec(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// resetFlags restores every flag to its default so package-level flag
// variables don't leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// decodeEnvelope parses --json output, decoding Data into data when non-nil.
func decodeEnvelope(t *testing.T, out string, data any) JSONEnvelope {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *JSONError      `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return JSONEnvelope{Success: raw.Success, Error: raw.Error}
}

// assertEnvironmentMetadata checks the block --environment attaches to a run.
func assertEnvironmentMetadata(t *testing.T, env *testEnv, id string) {
	t.Helper()
	md, ok := env.server.RunField(id, "metadata").(map[string]any)
	require.True(t, ok, "metadata should be set")
	block, ok := md["environment"].(map[string]any)
	require.True(t, ok, "metadata should hold an environment block")
	goInfo, ok := block["go"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, runtime.GOOS, goInfo["os"])
	assert.Equal(t, runtime.GOARCH, goInfo["arch"])
	assert.NotEmpty(t, goInfo["version"])
}
