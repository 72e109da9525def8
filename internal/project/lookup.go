package project

import (
	"fmt"

	"github.com/google/shlex"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// Lookup returns the task to run for name. Ref tasks are replaced by the
// task they reference; args carries any arguments the reference adds in
// front of the caller's own. Names are looked up in the completed registry,
// so a ref may point at a task declared by any config in the project.
func Lookup(model *types.ProjectModel, name string) (*types.TaskDefinition, []string, error) {
	task, ok := model.Registry.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", types.ErrTaskNotFound, name)
	}
	if task.Type != types.TaskRef {
		return task, nil, nil
	}
	return ResolveRef(model, task)
}

// ResolveRef follows a ref task to the task it names. The referenced task
// keeps its own origin and type; the ref's env entries are appended to the
// target's so they take precedence.
func ResolveRef(model *types.ProjectModel, ref *types.TaskDefinition) (*types.TaskDefinition, []string, error) {
	seen := make(map[string]bool)
	var args []string
	var env []types.EnvEntry
	cur := ref
	for cur.Type == types.TaskRef {
		words, err := shlex.Split(cur.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("task %q: parse reference %q: %w", cur.Name, cur.Body, err)
		}
		if len(words) == 0 {
			return nil, nil, fmt.Errorf("task %q: %w: empty reference", cur.Name, types.ErrInvalidTask)
		}
		target := words[0]
		if seen[target] {
			return nil, nil, fmt.Errorf("task %q: %w via %q", ref.Name, types.ErrRefCycle, target)
		}
		seen[target] = true

		next, ok := model.Registry.Get(target)
		if !ok {
			return nil, nil, fmt.Errorf("task %q references %q: %w", cur.Name, target, types.ErrTaskNotFound)
		}
		args = append(words[1:len(words):len(words)], args...)
		env = append(append([]types.EnvEntry(nil), cur.Env...), env...)
		cur = next
	}

	resolved := *cur
	resolved.Env = append(append([]types.EnvEntry(nil), cur.Env...), env...)
	return &resolved, args, nil
}
