package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/internal/logging"
	"github.com/mesh-intelligence/poe/internal/paths"
	"github.com/mesh-intelligence/poe/pkg/types"
)

// Resolver merges an entry config and its include graph into a
// ProjectModel.
type Resolver struct {
	loader *config.Loader
	log    logging.Logger
}

// NewResolver returns a Resolver that loads included configs through loader.
func NewResolver(loader *config.Loader, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{loader: loader, log: log}
}

// visit is a pending step of the include traversal.
type visit struct {
	node    *types.ConfigNode // Set for the entry; loaded lazily for includes.
	path    string
	parent  *types.ConfigNode
	execDir string
}

// Resolve walks the include graph depth-first in declaration order, starting
// at entry. A node's own tasks are registered before those of its includes
// and the first definition of a name wins. A config reached twice is merged
// once. processCwd is recorded on the model unchanged.
func (r *Resolver) Resolve(entry *types.ConfigNode, processCwd string) (*types.ProjectModel, error) {
	model := &types.ProjectModel{
		Root:       entry.Dir,
		ProcessCwd: processCwd,
		Entry:      entry,
		Links:      make(map[*types.ConfigNode]types.Link),
	}
	merged := types.NewRegistry()
	visited := make(map[string]bool)

	stack := []visit{{node: entry, path: entry.Path}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := paths.Canonical(v.path)
		if visited[key] {
			r.log.Debug("include already merged", "path", v.path)
			continue
		}
		visited[key] = true

		node := v.node
		if node == nil {
			var err error
			node, err = r.loader.Load(v.path)
			if err != nil {
				return nil, err
			}
		}
		if err := r.checkDir(node); err != nil {
			return nil, err
		}

		model.Nodes = append(model.Nodes, node)
		model.Links[node] = types.Link{Parent: v.parent, ExecDir: v.execDir}

		for _, task := range node.Tasks {
			if !merged.Add(task) {
				r.log.Debug("task already defined", "task", task.Name, "path", node.Path)
			}
		}
		for _, entry := range node.Env {
			model.EnvLayers = append(model.EnvLayers, types.EnvLayer{Node: node, Entry: entry})
		}

		children, err := r.expandIncludes(node, v.execDir)
		if err != nil {
			return nil, err
		}
		slices.Reverse(children)
		stack = append(stack, children...)
	}

	model.Registry = applyDefaultTypes(model, merged)
	return model, nil
}

func (r *Resolver) checkDir(node *types.ConfigNode) error {
	ok, err := afero.DirExists(r.loader.Fs(), node.Dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", node.Dir, err)
	}
	if !ok {
		return fmt.Errorf("config dir %s: %w", node.Dir, types.ErrConfigNotFound)
	}
	return nil
}

// expandIncludes turns the include declarations of node into traversal
// steps, in declaration order.
func (r *Resolver) expandIncludes(node *types.ConfigNode, inherited string) ([]visit, error) {
	var out []visit
	for _, inc := range node.Includes {
		execDir := inherited
		if inc.ExecDir != "" {
			execDir = joinDir(node.Dir, inc.ExecDir)
		}
		targets, err := r.includeTargets(node.Dir, inc.Path)
		if err != nil {
			return nil, fmt.Errorf("include %q from %s: %w", inc.Path, node.Path, err)
		}
		for _, target := range targets {
			out = append(out, visit{path: target, parent: node, execDir: execDir})
		}
	}
	return out, nil
}

// includeTargets resolves one include path to config files. Globs expand in
// lexical order and may match nothing; a plain path must exist. Directories
// stand for the recognized config they contain.
func (r *Resolver) includeTargets(baseDir, pattern string) ([]string, error) {
	path := joinDir(baseDir, pattern)
	if !isGlob(pattern) {
		target, err := r.configIn(path)
		if err != nil {
			return nil, err
		}
		return []string{target}, nil
	}

	base, rest := doublestar.SplitPattern(filepath.ToSlash(path))
	fsys := afero.NewIOFS(afero.NewBasePathFs(r.loader.Fs(), filepath.FromSlash(base)))
	matches, err := doublestar.Glob(fsys, rest)
	if err != nil {
		return nil, fmt.Errorf("expand glob: %w", err)
	}
	slices.Sort(matches)

	var targets []string
	for _, m := range matches {
		target, err := r.configIn(filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (r *Resolver) configIn(path string) (string, error) {
	fs := r.loader.Fs()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%s: %w", path, types.ErrConfigNotFound)
	}
	isDir, err := afero.IsDir(fs, path)
	if err != nil {
		return "", err
	}
	if !isDir {
		return path, nil
	}
	found, err := r.loader.FindInDir(path)
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%s: %w", path, types.ErrConfigNotFound)
	}
	return found, nil
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func joinDir(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
