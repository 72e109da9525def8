package types

// Registry is the merged name to task table. The first definition added
// under a name wins; later ones are dropped. Iteration follows insertion
// order.
type Registry struct {
	order []string
	tasks map[string]*TaskDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*TaskDefinition)}
}

// Add registers t unless a task with the same name is already present.
// It reports whether t was added.
func (r *Registry) Add(t *TaskDefinition) bool {
	if _, ok := r.tasks[t.Name]; ok {
		return false
	}
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
	return true
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (*TaskDefinition, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns task names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Tasks returns the registered tasks in registry order.
func (r *Registry) Tasks() []*TaskDefinition {
	out := make([]*TaskDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	return len(r.order)
}

// EnvLayer is a global env declaration tagged with the node that declared it.
type EnvLayer struct {
	Node  *ConfigNode
	Entry EnvEntry
}

// Link records how a node entered the include graph.
type Link struct {
	Parent  *ConfigNode // Node whose include list pulled this node in; nil for the entry.
	ExecDir string      // Nearest enclosing include exec dir override, absolute; empty if none.
}

// ProjectModel is the merged result of resolving an entry config and its
// includes. It is not modified after the include resolver returns it.
type ProjectModel struct {
	Root       string               // Resolved project root.
	ProcessCwd string               // Working directory of the poe process.
	Entry      *ConfigNode          // Entry config node.
	Registry   *Registry            // Merged task table.
	EnvLayers  []EnvLayer           // Global env declarations in precedence order.
	Nodes      []*ConfigNode        // Visited nodes in traversal order.
	Links      map[*ConfigNode]Link // Include provenance per node.
}

// Parent returns the node that included n, or nil for the entry node.
func (m *ProjectModel) Parent(n *ConfigNode) *ConfigNode {
	return m.Links[n].Parent
}

// Ancestry returns n followed by each including node up to the entry.
func (m *ProjectModel) Ancestry(n *ConfigNode) []*ConfigNode {
	var chain []*ConfigNode
	seen := make(map[*ConfigNode]bool)
	for cur := n; cur != nil && !seen[cur]; cur = m.Parent(cur) {
		seen[cur] = true
		chain = append(chain, cur)
	}
	return chain
}

// IncludeExecDir returns the exec dir a task declared by n runs in when the
// task itself does not override it.
func (m *ProjectModel) IncludeExecDir(n *ConfigNode) string {
	if dir := m.Links[n].ExecDir; dir != "" {
		return dir
	}
	return m.Root
}

// BaseFrame returns the path frame for task before its own ExecDir
// override is applied.
func (m *ProjectModel) BaseFrame(task *TaskDefinition) PathFrame {
	frame := PathFrame{
		Root:       m.Root,
		ProcessCwd: m.ProcessCwd,
		ExecDir:    m.Root,
	}
	if task.Origin != nil {
		frame.ConfigDir = task.Origin.Dir
		frame.ExecDir = m.IncludeExecDir(task.Origin)
	}
	return frame
}
