// Package dispatch runs resolved tasks: it computes each task's environment
// and exec dir, prints the trace line and hands the command to a Runner.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/google/shlex"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/poe/internal/environ"
	"github.com/mesh-intelligence/poe/internal/logging"
	"github.com/mesh-intelligence/poe/internal/project"
	"github.com/mesh-intelligence/poe/pkg/types"
)

// TracePrefix starts every trace line.
const TracePrefix = "Poe => "

// Default interpreters.
const (
	DefaultShell  = "sh"
	DefaultPython = "python"
)

// Options configures a Dispatcher. Zero values select the defaults.
type Options struct {
	Shell  string // Interpreter for shell tasks.
	Python string // Interpreter for script tasks.
	DryRun bool   // Print trace lines without running anything.

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Trace  io.Writer // Destination of trace lines; Stderr when nil.
}

// Dispatcher runs tasks of one project. It logs through the logger carried
// by the context passed to Run and Dispatch.
type Dispatcher struct {
	model  *types.ProjectModel
	env    *environ.Resolver
	runner Runner
	opts   Options
}

// New returns a Dispatcher for model. A nil runner runs real processes.
func New(model *types.ProjectModel, env *environ.Resolver, runner Runner, opts Options) *Dispatcher {
	if runner == nil {
		runner = ExecRunner{}
	}
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if opts.Python == "" {
		opts.Python = DefaultPython
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Trace == nil {
		opts.Trace = opts.Stderr
	}
	return &Dispatcher{model: model, env: env, runner: runner, opts: opts}
}

// step is one node of a planned run. Leaves carry a ready command,
// composites carry their children.
type step struct {
	task *types.TaskDefinition
	res  *environ.Result
	args []string

	argv  []string // nil for expr tasks
	trace string

	children []*step
	parallel bool
}

// Run looks up the task called name and dispatches it with args.
func (d *Dispatcher) Run(ctx context.Context, name string, args []string) error {
	task, refArgs, err := project.Lookup(d.model, name)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, task, append(refArgs, args...))
}

// Dispatch runs task with the extra arguments args. Every reference and
// environment in the task tree is resolved before the first command starts,
// so a broken item fails the run without side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, task *types.TaskDefinition, args []string) error {
	log := logging.FromContext(ctx)
	s, err := d.plan(task, args, nil, map[*types.TaskDefinition]bool{})
	if err != nil {
		log.Debug("plan failed", "task", task.Name, "error", err)
		return err
	}
	return d.execute(ctx, log, s)
}

// plan resolves task into a step tree. inherited holds the env declarations
// of enclosing composite tasks, outermost first. active marks the composite
// tasks on the current path.
func (d *Dispatcher) plan(task *types.TaskDefinition, args []string, inherited []types.EnvLayer, active map[*types.TaskDefinition]bool) (*step, error) {
	switch task.Type {
	case types.TaskRef:
		target, refArgs, err := project.ResolveRef(d.model, task)
		if err != nil {
			return nil, err
		}
		return d.plan(target, append(refArgs, args...), inherited, active)
	case types.TaskSequence, types.TaskParallel:
		return d.planComposite(task, args, inherited, active)
	}

	res, err := d.env.Resolve(d.model, task, inherited)
	if err != nil {
		return nil, err
	}
	s := &step{task: task, res: res, args: args, trace: task.Body}

	switch task.Type {
	case types.TaskCmd:
		s.argv, err = d.cmdArgv(task, res, args)
		if err == nil {
			s.trace = shellescape.QuoteCommand(s.argv)
		}
	case types.TaskShell:
		s.argv = d.shellArgv(task, args)
	case types.TaskScript:
		s.argv, err = d.scriptArgv(task, args)
	case types.TaskExpr:
	default:
		err = fmt.Errorf("task %q: %w %q", task.Name, types.ErrUnknownTaskType, task.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Dispatcher) planComposite(task *types.TaskDefinition, args []string, inherited []types.EnvLayer, active map[*types.TaskDefinition]bool) (*step, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("task %q: %w: %s tasks take no arguments", task.Name, types.ErrInvalidTask, task.Type)
	}
	// Copies made by ResolveRef share Items, so the first item identifies
	// the composite.
	if len(task.Items) > 0 {
		key := task.Items[0]
		if active[key] {
			return nil, fmt.Errorf("task %q: %w", task.Name, types.ErrRefCycle)
		}
		active[key] = true
		defer delete(active, key)
	}

	frame, err := d.env.Frame(d.model, task)
	if err != nil {
		return nil, err
	}
	layers := append([]types.EnvLayer(nil), inherited...)
	for _, e := range task.Env {
		layers = append(layers, types.EnvLayer{Node: task.Origin, Entry: e})
	}

	s := &step{task: task, parallel: task.Type == types.TaskParallel}
	for _, item := range task.Items {
		child := item
		if item.Type != types.TaskRef && item.ExecDir == "" {
			inline := *item
			inline.ExecDir = frame.ExecDir
			child = &inline
		}
		cs, err := d.plan(child, nil, layers, active)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.Name, err)
		}
		s.children = append(s.children, cs)
	}
	return s, nil
}

func (d *Dispatcher) execute(ctx context.Context, log logging.Logger, s *step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.res != nil {
		log.Debug("dispatch task", "task", s.task.Name, "type", s.task.Type, "dir", s.res.Frame.ExecDir)
		if s.task.Type == types.TaskExpr {
			return d.runExpr(ctx, s)
		}
		return d.exec(ctx, s)
	}

	if !s.parallel {
		for _, child := range s.children {
			if err := d.execute(ctx, log, child); err != nil {
				return fmt.Errorf("task %q: %w", s.task.Name, err)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, child := range s.children {
		child := child
		g.Go(func() error {
			return d.execute(gctx, log, child)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("task %q: %w", s.task.Name, err)
	}
	return nil
}

func (d *Dispatcher) cmdArgv(task *types.TaskDefinition, res *environ.Result, args []string) ([]string, error) {
	words, err := shlex.Split(environ.ExpandMap(task.Body, res.Env))
	if err != nil {
		return nil, fmt.Errorf("task %q: parse command: %w", task.Name, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("task %q: %w: empty command", task.Name, types.ErrInvalidTask)
	}
	return append(words, args...), nil
}

func (d *Dispatcher) shellArgv(task *types.TaskDefinition, args []string) []string {
	interpreter := task.Interpreter
	if interpreter == "" {
		interpreter = d.opts.Shell
	}
	return append([]string{interpreter, "-c", task.Body, interpreter}, args...)
}

// scriptArgv calls a python function given as "package.module:function".
// Extra arguments reach the function through sys.argv.
func (d *Dispatcher) scriptArgv(task *types.TaskDefinition, args []string) ([]string, error) {
	module, function, ok := strings.Cut(strings.TrimSpace(task.Body), ":")
	if !ok || module == "" || function == "" {
		return nil, fmt.Errorf("task %q: %w: script must be module:function, got %q", task.Name, types.ErrInvalidTask, task.Body)
	}
	call := function
	if !strings.Contains(function, "(") {
		call = function + "()"
	}
	stub := fmt.Sprintf("import sys; sys.argv = %s; import %s as _m; _m.%s", pyList(task.Name, args), module, call)

	python := task.Interpreter
	if python == "" {
		python = d.opts.Python
	}
	return []string{python, "-c", stub}, nil
}

func (d *Dispatcher) runExpr(ctx context.Context, s *step) error {
	fmt.Fprintln(d.opts.Trace, TracePrefix+s.trace)
	if d.opts.DryRun {
		return nil
	}
	out, err := evalExpr(ctx, s.task.Body, s.res.Env, s.args)
	if err != nil {
		return fmt.Errorf("task %q: %w", s.task.Name, err)
	}
	fmt.Fprintln(d.opts.Stdout, out)
	return nil
}

func (d *Dispatcher) exec(ctx context.Context, s *step) error {
	fmt.Fprintln(d.opts.Trace, TracePrefix+s.trace)
	if d.opts.DryRun {
		return nil
	}
	err := d.runner.Run(ctx, Command{
		Args:   s.argv,
		Dir:    s.res.Frame.ExecDir,
		Env:    s.res.Environ(),
		Stdin:  d.opts.Stdin,
		Stdout: d.opts.Stdout,
		Stderr: d.opts.Stderr,
	})
	if err != nil {
		return fmt.Errorf("task %q: %w", s.task.Name, err)
	}
	return nil
}

// pyList renders name and args as a python list of string literals.
func pyList(name string, args []string) string {
	items := make([]string, 0, len(args)+1)
	for _, s := range append([]string{name}, args...) {
		items = append(items, pyString(s))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func pyString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
