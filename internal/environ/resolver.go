// Package environ computes the environment a task runs with: the process
// environment, poe's frame variables, the project's global env layers and
// the task's own declarations, applied in that order.
package environ

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// Resolver resolves task environments. It holds a fixed snapshot of the
// host environment, so results depend only on the model and the task.
type Resolver struct {
	fs   afero.Fs
	host map[string]string
}

// NewResolver returns a Resolver reading env files from fs. host is the
// process environment in os.Environ form.
func NewResolver(fs afero.Fs, host []string) *Resolver {
	vars := make(map[string]string, len(host))
	for _, kv := range host {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = v
		}
	}
	return &Resolver{fs: fs, host: vars}
}

// Result is a resolved task environment together with the frame it was
// resolved in.
type Result struct {
	Env   map[string]string
	Frame types.PathFrame
}

// Environ returns the environment in os/exec form, sorted by key.
func (r *Result) Environ() []string {
	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+r.Env[k])
	}
	return out
}

// ResolveForTask returns the full environment mapping for task.
func (r *Resolver) ResolveForTask(model *types.ProjectModel, task *types.TaskDefinition) (map[string]string, error) {
	res, err := r.Resolve(model, task, nil)
	if err != nil {
		return nil, err
	}
	return res.Env, nil
}

// Resolve computes the environment and frame for task. inherited entries,
// typically those of an enclosing sequence, apply after the global layers
// and before the task's own env, each in the frame of the node that
// declared it.
func (r *Resolver) Resolve(model *types.ProjectModel, task *types.TaskDefinition, inherited []types.EnvLayer) (*Result, error) {
	frame, err := r.Frame(model, task)
	if err != nil {
		return nil, err
	}

	vars := maps.Clone(r.host)
	if vars == nil {
		vars = make(map[string]string)
	}
	setFrameVars(vars, frame)
	acc := &envState{vars: vars}

	for _, layer := range model.EnvLayers {
		if err := r.apply(acc, layer.Entry, frame.WithConfigDir(layer.Node.Dir)); err != nil {
			return nil, fmt.Errorf("env from %s: %w", layer.Node.Path, err)
		}
	}
	for _, layer := range inherited {
		local := frame
		if layer.Node != nil {
			local = frame.WithConfigDir(layer.Node.Dir)
		}
		if err := r.apply(acc, layer.Entry, local); err != nil {
			return nil, fmt.Errorf("task %q: inherited env: %w", task.Name, err)
		}
	}
	for _, entry := range task.Env {
		if err := r.apply(acc, entry, frame); err != nil {
			return nil, fmt.Errorf("task %q: env: %w", task.Name, err)
		}
	}
	return &Result{Env: acc.vars, Frame: frame}, nil
}

// Frame returns the path frame for task with its exec dir settled. A task
// cwd is interpolated against the host environment and the frame
// variables, then joined onto the include exec dir when relative.
func (r *Resolver) Frame(model *types.ProjectModel, task *types.TaskDefinition) (types.PathFrame, error) {
	frame := model.BaseFrame(task)
	if task.ExecDir == "" {
		return frame, nil
	}
	vars := maps.Clone(r.host)
	if vars == nil {
		vars = make(map[string]string)
	}
	setFrameVars(vars, frame)
	dir := ExpandMap(task.ExecDir, vars)
	if dir == "" {
		return frame, fmt.Errorf("task %q: cwd %q expands to an empty path: %w", task.Name, task.ExecDir, types.ErrInvalidTask)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(frame.ExecDir, dir)
	}
	frame.ExecDir = filepath.Clean(dir)
	return frame, nil
}

// envState is an environment under construction.
type envState struct {
	vars       map[string]string
	confDirSet bool // an env entry assigned POE_CONF_DIR
}

func (s *envState) set(key, value string) {
	s.vars[key] = value
	if key == types.VarConfDir {
		s.confDirSet = true
	}
}

// lookup reads variables from s. Until an entry assigns POE_CONF_DIR, it
// reads as the config dir of frame.
func (s *envState) lookup(frame types.PathFrame) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if name == types.VarConfDir && !s.confDirSet {
			return frame.ConfigDir, true
		}
		v, ok := s.vars[name]
		return v, ok
	}
}

// apply resolves one entry against acc and writes the result into acc.
func (r *Resolver) apply(acc *envState, entry types.EnvEntry, frame types.PathFrame) error {
	lookup := acc.lookup(frame)

	switch entry.Kind {
	case types.EnvLiteral:
		acc.set(entry.Key, Expand(entry.Value, lookup))
	case types.EnvCopy:
		v, ok := lookup(entry.Value)
		if !ok {
			return fmt.Errorf("%s: %w %q", entry.Key, types.ErrUndefinedVariable, entry.Value)
		}
		acc.set(entry.Key, v)
	case types.EnvPath:
		p, err := frame.Join(entry.Frame, Expand(entry.Value, lookup))
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Key, err)
		}
		acc.set(entry.Key, p)
	case types.EnvFile:
		p, err := frame.Join(entry.Frame, Expand(entry.Value, lookup))
		if err != nil {
			return fmt.Errorf("envfile %s: %w", entry.Value, err)
		}
		vars, err := readEnvFile(r.fs, p, lookup)
		if err != nil {
			return err
		}
		if err := mergo.Merge(&acc.vars, vars, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge env file %s: %w", p, err)
		}
		if _, ok := vars[types.VarConfDir]; ok {
			acc.confDirSet = true
		}
	default:
		return fmt.Errorf("%s: %w: kind %s", entry.Key, types.ErrInvalidEnvEntry, entry.Kind)
	}
	return nil
}

func setFrameVars(vars map[string]string, frame types.PathFrame) {
	vars[types.VarRoot] = frame.Root
	vars[types.VarCwd] = frame.ProcessCwd
	vars[types.VarPwd] = frame.ProcessCwd
	vars[types.VarConfDir] = frame.ConfigDir
	vars[types.VarExecDir] = frame.ExecDir
}
