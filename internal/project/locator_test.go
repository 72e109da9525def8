package project

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/pkg/types"
)

func TestLocateWalksUpward(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/repo/pyproject.toml", "[tool.poe.tasks]\nx = \"echo\"\n")
	writeFile(t, fs, "/repo/lib/pyproject.toml", "[project]\nname = \"lib\"\n")
	require.NoError(t, fs.MkdirAll("/repo/lib/src/deep", 0o755))

	loc := NewLocator(config.NewLoader(fs))

	node, err := loc.Locate("", "/repo/lib/src/deep")
	require.NoError(t, err)
	assert.Equal(t, "/repo/pyproject.toml", node.Path, "pyproject without [tool.poe] is skipped")
}

func TestLocateOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/repo/poe_tasks.toml", "tasks = { up = \"echo\" }\n")
	writeFile(t, fs, "/repo/sub/poe_tasks.yaml", "tasks:\n  down: echo\n")
	writeFile(t, fs, "/repo/sub/alt.toml", "tasks = { alt = \"echo\" }\n")

	loc := NewLocator(config.NewLoader(fs))

	node, err := loc.Locate("/repo/sub", "/repo")
	require.NoError(t, err)
	assert.Equal(t, "/repo/sub/poe_tasks.yaml", node.Path)

	node, err = loc.Locate("/repo/sub/alt.toml", "/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alt"}, node.TaskNames())

	_, err = loc.Locate("/nowhere", "/repo")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)

	require.NoError(t, fs.MkdirAll("/empty", 0o755))
	_, err = loc.Locate("/empty", "/repo")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)
}

func TestLocateNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/a/b", 0o755))

	_, err := NewLocator(config.NewLoader(fs)).Locate("", "/a/b")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)
}

func TestLocateParseError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/poe_tasks.toml", "tasks = [")

	_, err := NewLocator(config.NewLoader(fs)).Locate("", "/a")
	assert.ErrorIs(t, err, types.ErrConfigParse)
}

// Searching from anywhere under a subproject finds the same root as naming
// the subproject explicitly.
func TestLocateRootDiscoveryIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/mono/pyproject.toml", "[tool.poe]\ninclude = \"sub\"\n")
	writeFile(t, fs, "/mono/sub/poe_tasks.toml", "tasks = { a = \"echo\" }\n")
	require.NoError(t, fs.MkdirAll("/mono/sub/nested/dir", 0o755))

	loc := NewLocator(config.NewLoader(fs))

	explicit, err := loc.Locate("/mono/sub", "/mono")
	require.NoError(t, err)

	searched, err := loc.Locate("", "/mono/sub/nested/dir")
	require.NoError(t, err)
	assert.Equal(t, explicit.Path, searched.Path)
	assert.Equal(t, explicit.Dir, searched.Dir)
}
