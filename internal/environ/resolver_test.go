package environ

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/internal/project"
	"github.com/mesh-intelligence/poe/pkg/types"
)

var testHost = []string{"PATH=/usr/bin:/bin", "HOME=/home/poe", "REL_ROOT=from host"}

func monorepo(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "projects", "monorepo"))
	require.NoError(t, err)
	return dir
}

func resolveProject(t *testing.T, fs afero.Fs, root, cwd string) *types.ProjectModel {
	t.Helper()
	loader := config.NewLoader(fs)
	entry, err := project.NewLocator(loader).Locate(root, cwd)
	require.NoError(t, err)
	model, err := project.NewResolver(loader, nil).Resolve(entry, cwd)
	require.NoError(t, err)
	return model
}

func task(t *testing.T, model *types.ProjectModel, name string) *types.TaskDefinition {
	t.Helper()
	got, ok := model.Registry.Get(name)
	require.True(t, ok, name)
	return got
}

func TestResolveTaskLayering(t *testing.T) {
	root := monorepo(t)
	sub3 := filepath.Join(root, "subproject_3")
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, root, root)

	env, err := NewResolver(fs, testHost).ResolveForTask(model, task(t, model, "subproj3_env"))
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin:/bin", env["PATH"])
	assert.Equal(t, "/home/poe", env["HOME"])

	assert.Equal(t, root, env[types.VarRoot])
	assert.Equal(t, root, env[types.VarCwd])
	assert.Equal(t, root, env[types.VarPwd])
	assert.Equal(t, sub3, env[types.VarConfDir])
	assert.Equal(t, root, env[types.VarExecDir])

	assert.Equal(t, "rel to root", env["REL_ROOT"], "global env file overrides the host")
	assert.Equal(t, "task level rel to root", env["TASK_REL_ROOT"], "task env overrides global env file")
	assert.Equal(t, "rel to process cwd", env["REL_PROC_CWD"])
	assert.Equal(t, "rel to source config", env["REL_SOURCE_CONFIG"])
	assert.Equal(t, "task level rel to process cwd", env["TASK_REL_PROC_CWD"])
	assert.Equal(t, "task level rel to source config", env["TASK_REL_SOURCE_CONFIG"])

	assert.Equal(t, root, env["POE_ROOT_COPY"])
	assert.Equal(t, root, env["POE_CWD_COPY"])
	assert.Equal(t, sub3, env["POE_CONF_DIR_COPY"])

	assert.Equal(t, "subproject 4 source config", env["SUB4_SOURCE_CONFIG"])
	assert.Equal(t, filepath.Join(root, "data"), env["DATA_DIR"])
}

func TestResolveConfDirFollowsDeclaringNode(t *testing.T) {
	root := monorepo(t)
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, root, root)

	env, err := NewResolver(fs, nil).ResolveForTask(model, task(t, model, "get_cwd_0"))
	require.NoError(t, err)

	assert.Equal(t, root, env[types.VarConfDir], "task level value is the task's origin dir")
	assert.Equal(t, filepath.Join(root, "subproject_3"), env["POE_CONF_DIR_COPY"], "global entries see their own config dir")
}

func TestResolveSubprojectAsRoot(t *testing.T) {
	root := monorepo(t)
	sub3 := filepath.Join(root, "subproject_3")
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, sub3, root)

	env, err := NewResolver(fs, nil).ResolveForTask(model, task(t, model, "subproj3_env"))
	require.NoError(t, err)

	assert.Equal(t, sub3, env[types.VarRoot])
	assert.Equal(t, root, env[types.VarCwd])
	assert.Equal(t, "subproject 3 as root", env["REL_ROOT"])
	assert.Equal(t, "rel to process cwd", env["REL_PROC_CWD"])
}

// Global env files of subproject_3 do not depend on the process cwd, so its
// tasks resolve when poe runs from an unrelated directory.
func TestResolveSubprojectFromOtherDir(t *testing.T) {
	sub3 := filepath.Join(monorepo(t), "subproject_3")
	elsewhere := t.TempDir()
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, sub3, elsewhere)
	r := NewResolver(fs, nil)

	res, err := r.Resolve(model, task(t, model, "get_cwd_3"), nil)
	require.NoError(t, err)
	assert.Equal(t, elsewhere, res.Frame.ExecDir)
	assert.Equal(t, "subproject 3 as root", res.Env["REL_ROOT"])

	_, err = r.ResolveForTask(model, task(t, model, "subproj3_env"))
	assert.ErrorIs(t, err, types.ErrInvalidEnvFile, "task level env files stay relative to the process cwd")
}

func TestResolveIncludeExecDir(t *testing.T) {
	root := monorepo(t)
	execDir := filepath.Join(root, "subproject_4", "exec_dir")
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, root, root)

	res, err := NewResolver(fs, nil).Resolve(model, task(t, model, "subproj4_env"), nil)
	require.NoError(t, err)

	assert.Equal(t, execDir, res.Frame.ExecDir)
	assert.Equal(t, execDir, res.Env[types.VarExecDir])
	assert.Equal(t, "rel to cwd", res.Env["FROM_INCLUDE_CWD"])
	assert.Equal(t, "task level rel to cwd", res.Env["TASK_FROM_INCLUDE_CWD"])
	assert.Equal(t, filepath.Join(execDir, "data"), res.Env["DATA_DIR"])
}

func TestFrameExecDir(t *testing.T) {
	root := monorepo(t)
	fs := afero.NewOsFs()
	processCwd := filepath.Join(root, "subproject_1")
	loader := config.NewLoader(fs)
	entry, err := loader.Load(filepath.Join(root, "pyproject.toml"))
	require.NoError(t, err)
	model, err := project.NewResolver(loader, nil).Resolve(entry, processCwd)
	require.NoError(t, err)

	r := NewResolver(fs, nil)
	tests := []struct {
		task string
		want string
	}{
		{task: "get_cwd_0", want: root},
		{task: "get_cwd_1", want: root},
		{task: "get_cwd_2", want: filepath.Join(root, "subproject_2")},
		{task: "extra_task", want: filepath.Join(root, "subproject_2")},
		{task: "get_cwd_3", want: processCwd},
		{task: "subproj4_env", want: filepath.Join(root, "subproject_4", "exec_dir")},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			frame, err := r.Frame(model, task(t, model, tt.task))
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.ExecDir)
			assert.Equal(t, root, frame.Root)
			assert.Equal(t, processCwd, frame.ProcessCwd)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	root := monorepo(t)
	fs := afero.NewOsFs()
	model := resolveProject(t, fs, root, root)
	r := NewResolver(fs, testHost)

	for _, name := range model.Registry.Names() {
		first, err := r.ResolveForTask(model, task(t, model, name))
		require.NoError(t, err, name)
		second, err := r.ResolveForTask(model, task(t, model, name))
		require.NoError(t, err, name)
		assert.Equal(t, first, second, name)
	}
}

// memProject builds a single-file project on an in-memory filesystem.
func memProject(t *testing.T, fs afero.Fs, files map[string]string) *types.ProjectModel {
	t.Helper()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return resolveProject(t, fs, "/p", "/p")
}

func TestResolveEntryKinds(t *testing.T) {
	fs := afero.NewMemMapFs()
	model := memProject(t, fs, map[string]string{
		"/p/poe_tasks.toml": `
envfile = ".env"

[env]
GREETING = "hello ${WHO}"
ALIAS = { copy = "GREETING" }
OUT = { path = "build/${MODE}" }
ROOTED = { path = "/opt/tool", relative_to = "exec" }
UNKNOWN = "[${NOPE}]"

[tasks.show]
cmd = "env"
env = { GREETING = "bye", CHAINED = "${ALIAS}!" }
`,
		"/p/.env": "WHO=world\nMODE=release\n",
	})

	env, err := NewResolver(fs, nil).ResolveForTask(model, task(t, model, "show"))
	require.NoError(t, err)

	assert.Equal(t, "world", env["WHO"])
	assert.Equal(t, "bye", env["GREETING"])
	assert.Equal(t, "hello world", env["ALIAS"])
	assert.Equal(t, "hello world!", env["CHAINED"])
	assert.Equal(t, "/p/build/release", env["OUT"])
	assert.Equal(t, "/opt/tool", env["ROOTED"])
	assert.Equal(t, "[]", env["UNKNOWN"])
}

func TestResolveEnvFileInterpolation(t *testing.T) {
	fs := afero.NewMemMapFs()
	model := memProject(t, fs, map[string]string{
		"/p/poe_tasks.toml": `
envfile = ".env"

[tasks.show]
cmd = "env"
`,
		"/p/.env": `DATA=${POE_ROOT}/data
OWN=${DATA}/own
FROM_HOST="${BASE} via file"
PATH=${PATH}:/opt/bin
CONF=${POE_CONF_DIR}
`,
	})

	env, err := NewResolver(fs, []string{"PATH=/usr/bin", "BASE=from host"}).ResolveForTask(model, task(t, model, "show"))
	require.NoError(t, err)

	assert.Equal(t, "/p/data", env["DATA"])
	assert.Equal(t, "/p/data/own", env["OWN"])
	assert.Equal(t, "from host via file", env["FROM_HOST"])
	assert.Equal(t, "/usr/bin:/opt/bin", env["PATH"])
	assert.Equal(t, "/p", env["CONF"])
}

func TestResolveConfDirOverride(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "literal",
			files: map[string]string{"/p/poe_tasks.toml": `
[env]
POE_CONF_DIR = "/custom"
X = "${POE_CONF_DIR}/x"

[tasks.show]
cmd = "env"
env = { Y = "${POE_CONF_DIR}/y" }
`},
		},
		{
			name: "env file",
			files: map[string]string{
				"/p/poe_tasks.toml": `
envfile = "conf.env"

[env]
X = "${POE_CONF_DIR}/x"

[tasks.show]
cmd = "env"
env = { Y = "${POE_CONF_DIR}/y" }
`,
				"/p/conf.env": "POE_CONF_DIR=/custom\n",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			model := memProject(t, fs, tt.files)

			env, err := NewResolver(fs, nil).ResolveForTask(model, task(t, model, "show"))
			require.NoError(t, err)

			assert.Equal(t, "/custom", env[types.VarConfDir])
			assert.Equal(t, "/custom/x", env["X"])
			assert.Equal(t, "/custom/y", env["Y"])
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr error
	}{
		{
			name:    "copy of undefined variable",
			config:  "[env]\nX = { copy = \"NOT_SET_ANYWHERE\" }\n[tasks]\nt = \"echo\"\n",
			wantErr: types.ErrUndefinedVariable,
		},
		{
			name:    "missing global env file",
			config:  "envfile = \"missing.env\"\n[tasks]\nt = \"echo\"\n",
			wantErr: types.ErrInvalidEnvFile,
		},
		{
			name:    "missing task env file",
			config:  "[tasks.t]\ncmd = \"echo\"\nenvfile = { path = \"nope.env\", relative_to = \"root\" }\n",
			wantErr: types.ErrInvalidEnvFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			model := memProject(t, fs, map[string]string{"/p/poe_tasks.toml": tt.config})

			_, err := NewResolver(fs, nil).ResolveForTask(model, task(t, model, "t"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolveInheritedLayers(t *testing.T) {
	fs := afero.NewMemMapFs()
	model := memProject(t, fs, map[string]string{
		"/p/poe_tasks.toml": `
[tasks.child]
cmd = "echo"
env = { LEVEL = "child" }
`,
	})

	inherited := []types.EnvLayer{
		{Node: model.Entry, Entry: types.Literal("LEVEL", "parent")},
		{Node: model.Entry, Entry: types.Literal("FROM_PARENT", "${POE_CONF_DIR}")},
	}
	res, err := NewResolver(fs, nil).Resolve(model, task(t, model, "child"), inherited)
	require.NoError(t, err)

	assert.Equal(t, "child", res.Env["LEVEL"])
	assert.Equal(t, "/p", res.Env["FROM_PARENT"])
}

func TestResultEnviron(t *testing.T) {
	res := &Result{Env: map[string]string{"B": "2", "A": "1"}}
	assert.Equal(t, []string{"A=1", "B=2"}, res.Environ())
}
