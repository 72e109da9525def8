package types

import "errors"

// Recognized config file names, in the order they are tried within a
// directory.
const (
	PyprojectFile = "pyproject.toml"
	TasksTOMLFile = "poe_tasks.toml"
	TasksYAMLFile = "poe_tasks.yaml"
	TasksYMLFile  = "poe_tasks.yml"
	TasksJSONFile = "poe_tasks.json"
)

// ConfigFileNames lists the recognized config sources in priority order.
var ConfigFileNames = []string{
	PyprojectFile,
	TasksTOMLFile,
	TasksYAMLFile,
	TasksYMLFile,
	TasksJSONFile,
}

// IncludeSpec references another config source from a ConfigNode.
type IncludeSpec struct {
	Path    string // Absolute, or relative to the declaring node's Dir.
	ExecDir string // Optional working directory for tasks pulled in through this include.
}

// ConfigNode is one parsed configuration source.
// A node is created once per distinct config file and is not modified after
// parsing; task definitions and env layers refer back to it.
type ConfigNode struct {
	Path            string            // Absolute path of the config file.
	Dir             string            // Directory holding the config file.
	Tasks           []*TaskDefinition // Task declarations in file order.
	Env             []EnvEntry        // Node-scoped env declarations; env files first, then inline.
	DefaultTaskType TaskType          // Empty when the node does not declare one.
	Includes        []IncludeSpec     // Include declarations in file order.
}

// TaskNames returns the names of the node's own tasks in declaration order.
func (n *ConfigNode) TaskNames() []string {
	names := make([]string, 0, len(n.Tasks))
	for _, t := range n.Tasks {
		names = append(names, t.Name)
	}
	return names
}

// Config loading errors.
var (
	ErrConfigNotFound = errors.New("no poe config found")
	ErrConfigParse    = errors.New("invalid poe config")
)
