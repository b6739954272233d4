package system

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.22.4",
		Main:      debug.Module{Path: "github.com/simvue-io/simvue-cli", Version: "v0.3.0"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.8.0"},
			{Path: "github.com/old/lib", Version: "v1.0.0", Replace: &debug.Module{Path: "github.com/new/lib", Version: "v1.1.0"}},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	env := EnvironmentFromBuildInfo(bi, "linux", "arm64")
	assert.Equal(t, "go1.22.4", env.GoVersion)
	assert.Equal(t, "abc123", env.Revision)
	assert.True(t, env.Modified)
	assert.Equal(t, map[string]string{
		"github.com/spf13/cobra": "v1.8.0",
		"github.com/new/lib":     "v1.1.0",
	}, env.Modules)

	m := env.Map()
	assert.Equal(t, map[string]any{"version": "go1.22.4", "os": "linux", "arch": "arm64"}, m["go"])
	assert.Equal(t, map[string]any{
		"module":   "github.com/simvue-io/simvue-cli",
		"version":  "v0.3.0",
		"revision": "abc123",
		"modified": true,
	}, m["build"])
}

func TestEnvironmentWithoutBuildInfo(t *testing.T) {
	env := EnvironmentFromBuildInfo(nil, "darwin", "amd64")
	assert.Equal(t, runtime.Version(), env.GoVersion)
	assert.Empty(t, env.Modules)

	m := env.Map()
	assert.NotContains(t, m, "build")
	assert.Equal(t, map[string]any{}, m["modules"])
}

func TestReadEnvironment(t *testing.T) {
	env := ReadEnvironment()
	assert.Equal(t, runtime.GOOS, env.OS)
	assert.Equal(t, runtime.GOARCH, env.Arch)
	assert.NotEmpty(t, env.GoVersion)
}
