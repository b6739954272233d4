package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetValue(t *testing.T) {
	tests := []struct {
		name         string
		initialYAML  string
		key          string
		value        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "new file",
			key:          "server.url",
			value:        "https://simvue.example.com",
			wantContains: []string{"server:", "url: https://simvue.example.com"},
		},
		{
			name: "replace existing value",
			initialYAML: `server:
  url: http://old
  token: keep-me
`,
			key:          "server.url",
			value:        "https://new",
			wantContains: []string{"url: https://new", "token: keep-me"},
			wantAbsent:   []string{"http://old"},
		},
		{
			name: "add key to existing section",
			initialYAML: `server:
  url: https://simvue.example.com
`,
			key:          "server.token",
			value:        "abc",
			wantContains: []string{"url: https://simvue.example.com", "token: abc"},
		},
		{
			name: "comments preserved",
			initialYAML: `# my settings
version: 1
run:
  cache_dir: /tmp/x # scratch
`,
			key:          "server.token",
			value:        "abc",
			wantContains: []string{"# my settings", "# scratch", "token: abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "nested", ConfigFileName)
			if tt.initialYAML != "" {
				require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o755))
				require.NoError(t, os.WriteFile(configPath, []byte(tt.initialYAML), 0o644))
			}

			require.NoError(t, SetValue(configPath, tt.key, tt.value))

			content, err := os.ReadFile(configPath)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, string(content), want)
			}
			for _, absent := range tt.wantAbsent {
				assert.NotContains(t, string(content), absent)
			}
		})
	}
}

func TestSetValue_RoundTripsThroughLoad(t *testing.T) {
	t.Setenv(EnvURL, "")
	t.Setenv(EnvToken, "")

	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, SetValue(configPath, "server.url", "https://simvue.example.com"))
	require.NoError(t, SetValue(configPath, "server.token", "t0k3n"))
	require.NoError(t, SetValue(configPath, "server.token", "t0k3n-2"))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://simvue.example.com", cfg.Server.URL)
	assert.Equal(t, "t0k3n-2", cfg.Server.Token)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "token:"))
}

func TestSetValue_FileIsPrivate(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, SetValue(configPath, "server.token", "secret"))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetValue_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		initial string
		key     string
	}{
		{name: "no section", key: "url"},
		{name: "too deep", key: "server.url.extra"},
		{name: "empty part", key: ".url"},
		{name: "section not a mapping", initial: "server: plain\n", key: "server.url"},
		{name: "root not a mapping", initial: "- a\n- b\n", key: "server.url"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(dir, strings.Repeat("x", i+1)+".yaml")
			if tt.initial != "" {
				require.NoError(t, os.WriteFile(configPath, []byte(tt.initial), 0o644))
			}
			assert.Error(t, SetValue(configPath, tt.key, "v"))
		})
	}
}
