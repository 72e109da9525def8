package types

import "errors"

// TaskType tags how a task body is executed.
type TaskType string

// Task types understood by the dispatcher.
const (
	TaskCmd      TaskType = "cmd"
	TaskShell    TaskType = "shell"
	TaskScript   TaskType = "script"
	TaskSequence TaskType = "sequence"
	TaskParallel TaskType = "parallel"
	TaskRef      TaskType = "ref"
	TaskExpr     TaskType = "expr"
)

// FallbackTaskType applies when neither the task nor any config in its
// include ancestry declares a type.
const FallbackTaskType = TaskCmd

// TaskTypes lists the type keys in the order the parser checks for them.
var TaskTypes = []TaskType{
	TaskCmd,
	TaskShell,
	TaskScript,
	TaskSequence,
	TaskParallel,
	TaskRef,
	TaskExpr,
}

var validTaskTypes = map[TaskType]bool{
	TaskCmd:      true,
	TaskShell:    true,
	TaskScript:   true,
	TaskSequence: true,
	TaskParallel: true,
	TaskRef:      true,
	TaskExpr:     true,
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	return validTaskTypes[t]
}

// Composite reports whether tasks of this type run sub-tasks rather than a
// single command.
func (t TaskType) Composite() bool {
	return t == TaskSequence || t == TaskParallel
}

// TaskDefinition is a single named task.
type TaskDefinition struct {
	Name        string            // Task name; unique within the final registry.
	Type        TaskType          // Empty when the declaration did not say.
	Body        string            // Command, script, expression, or referenced task name.
	Items       []*TaskDefinition // Sub-tasks of a sequence or parallel task.
	Help        string            // Short description shown in listings.
	Env         []EnvEntry        // Task-scoped env declarations; highest precedence.
	ExecDir     string            // Optional working directory; may contain ${NAME} placeholders.
	Interpreter string            // Optional interpreter for shell tasks.
	Origin      *ConfigNode       // Node that declared the task.
}

// WithType returns a shallow copy of the task with the given type.
func (t *TaskDefinition) WithType(typ TaskType) *TaskDefinition {
	c := *t
	c.Type = typ
	return &c
}

// Validate checks that the definition is executable as declared.
func (t *TaskDefinition) Validate() error {
	if t.Name == "" {
		return ErrInvalidTask
	}
	if t.Type != "" && !t.Type.Valid() {
		return ErrUnknownTaskType
	}
	if t.Type.Composite() {
		if len(t.Items) == 0 {
			return ErrInvalidTask
		}
		return nil
	}
	if t.Body == "" && len(t.Items) == 0 {
		return ErrInvalidTask
	}
	return nil
}

// Task errors.
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTask     = errors.New("invalid task definition")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrRefCycle        = errors.New("task reference cycle")
)
