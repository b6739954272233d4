package doctor

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

type fakeServer struct {
	version    string
	versionErr error
	user       *simvue.User
	userErr    error
	runs       map[string]string // id -> status; missing ids are not found
}

func (f *fakeServer) Version(_ context.Context) (string, error) { return f.version, f.versionErr }

func (f *fakeServer) WhoAmI(_ context.Context) (*simvue.User, error) { return f.user, f.userErr }

func (f *fakeServer) GetRun(_ context.Context, id string) (*simvue.Run, error) {
	status, ok := f.runs[id]
	if !ok {
		return nil, &simvue.APIError{Method: http.MethodGet, Path: "runs/" + id, StatusCode: http.StatusNotFound}
	}
	return &simvue.Run{ID: id, Status: status}, nil
}

func TestConfigChecks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvToken, "")

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("server:\n  url: https://simvue.example.com\n  token: abc\n"), 0o600))
	noToken := filepath.Join(dir, "notoken.yaml")
	require.NoError(t, os.WriteFile(noToken, []byte("server:\n  url: https://simvue.example.com\n"), 0o600))

	tests := []struct {
		name      string
		path      string
		fileWant  CheckStatus
		validWant CheckStatus
	}{
		{"valid", good, StatusPass, StatusPass},
		{"missing token", noToken, StatusPass, StatusFail},
		{"missing file", filepath.Join(dir, "nope.yaml"), StatusFail, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, tt.fileWant, (&ConfigFileCheck{ConfigPath: tt.path}).Run(ctx).Status)
			res := (&ConfigValidCheck{ConfigPath: tt.path}).Run(ctx)
			assert.Equal(t, tt.validWant, res.Status, res.Message)
		})
	}
}

func TestConfigValidCheckExplainsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simvue.yaml")
	t.Setenv(config.EnvURL, "")
	t.Setenv(config.EnvToken, "")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: https://simvue.example.com\n"), 0o600))

	res := (&ConfigValidCheck{ConfigPath: path}).Run(context.Background())
	assert.Equal(t, "No server token configured", res.Message)
	assert.Contains(t, res.Suggestion, "simvue config server.token")
}

func TestServerChecks(t *testing.T) {
	ctx := context.Background()
	ok := &fakeServer{version: "3.1.0", user: &simvue.User{Username: "ada", Tenant: "lab"}}

	res := (&ServerCheck{Client: ok, URL: "https://s"}).Run(ctx)
	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "3.1.0")

	res = (&AuthCheck{Client: ok}).Run(ctx)
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "Authenticated as ada (lab)", res.Message)

	down := &fakeServer{versionErr: context.DeadlineExceeded, userErr: &simvue.APIError{StatusCode: http.StatusUnauthorized}}
	assert.Equal(t, StatusFail, (&ServerCheck{Client: down, URL: "https://s"}).Run(ctx).Status)
	res = (&AuthCheck{Client: down}).Run(ctx)
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "The server rejected the token", res.Message)

	assert.Equal(t, unconfigured, (&ServerCheck{}).Run(ctx).Message)
	assert.Equal(t, unconfigured, (&AuthCheck{}).Run(ctx).Message)
}

func TestCacheDirCheck(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "runs")
	check := &CacheDirCheck{Dir: dir}

	res := check.Run(ctx)
	assert.Equal(t, StatusWarn, res.Status)
	assert.True(t, res.Fixable)

	require.NoError(t, check.Fix(ctx))
	assert.Equal(t, StatusPass, check.Run(ctx).Status)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Equal(t, StatusFail, (&CacheDirCheck{Dir: file}).Run(ctx).Status)
}

func TestStaleRunsCheck(t *testing.T) {
	ctx := context.Background()
	store := runcache.New(t.TempDir())
	for _, id := range []string{"live", "done", "gone"} {
		require.NoError(t, store.Save(runcache.Entry{ID: id, StartTime: time.Now()}))
	}
	srv := &fakeServer{runs: map[string]string{
		"live": simvue.StatusRunning,
		"done": simvue.StatusCompleted,
	}}
	check := &StaleRunsCheck{Store: store, Client: srv}

	res := check.Run(ctx)
	assert.Equal(t, StatusWarn, res.Status)
	assert.Equal(t, "2 of 3 cached runs closed or deleted on the server", res.Message)
	assert.True(t, res.Fixable)

	require.NoError(t, check.Fix(ctx))
	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].ID)
	assert.Equal(t, StatusPass, check.Run(ctx).Status)

	offline := (&StaleRunsCheck{Store: store}).Run(ctx)
	assert.Equal(t, StatusPass, offline.Status)
	assert.Contains(t, offline.Message, "not compared")
}
