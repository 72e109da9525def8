package project

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/pkg/types"
)

// fixture returns the absolute path of a checked-in test project.
func fixture(t *testing.T, parts ...string) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join(append([]string{"..", "..", "testdata", "projects"}, parts...)...))
	require.NoError(t, err)
	return dir
}

// resolveFixture locates and resolves a checked-in project with an explicit
// root, the way --root does.
func resolveFixture(t *testing.T, root, cwd string) *types.ProjectModel {
	t.Helper()
	loader := config.NewLoader(afero.NewOsFs())
	entry, err := NewLocator(loader).Locate(root, cwd)
	require.NoError(t, err)
	model, err := NewResolver(loader, nil).Resolve(entry, cwd)
	require.NoError(t, err)
	return model
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func resolveMem(t *testing.T, fs afero.Fs, entryPath string) (*types.ProjectModel, error) {
	t.Helper()
	loader := config.NewLoader(fs)
	entry, err := loader.Load(entryPath)
	require.NoError(t, err)
	return NewResolver(loader, nil).Resolve(entry, filepath.Dir(entryPath))
}
