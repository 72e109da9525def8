package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"POE_LOG_LEVEL", "POE_SHELL", "POE_PYTHON", "POE_PROJECT_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Settings{LogLevel: "warn", Shell: "sh", Python: "python"}, s)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"log_level: info\nshell: bash\npython: python3\n",
	), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "bash", s.Shell)
	assert.Equal(t, "python3", s.Python)

	t.Setenv("POE_SHELL", "zsh")
	t.Setenv("POE_PROJECT_DIR", "/work/project")
	s, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "zsh", s.Shell, "environment beats config.yaml")
	assert.Equal(t, "/work/project", s.ProjectDir)
}

func TestLoadNoConfigDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("POE_LOG_LEVEL", "debug")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown log level", yaml: "log_level: loud\n"},
		{name: "empty shell", yaml: "shell: \"\"\n"},
		{name: "log level from env", yaml: "", env: map[string]string{"POE_LOG_LEVEL": "trace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.yaml), 0o644))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(dir)
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("shell: [unclosed\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSettings)
}
