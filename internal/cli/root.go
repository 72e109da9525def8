// Package cli implements the poe command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/internal/dispatch"
	"github.com/mesh-intelligence/poe/internal/environ"
	"github.com/mesh-intelligence/poe/internal/logging"
	"github.com/mesh-intelligence/poe/internal/paths"
	"github.com/mesh-intelligence/poe/internal/project"
	"github.com/mesh-intelligence/poe/internal/settings"
	"github.com/mesh-intelligence/poe/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is the poe version, set at build time with -ldflags -X.
var Version = "0.1.0-dev"

// rootFlags holds global flag values.
type rootFlags struct {
	root      string
	configDir string
	verbose   bool
	quiet     bool
	dryRun    bool
}

// NewRootCmd creates the "poe" command. Everything after the task name is
// passed to the task untouched.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "poe [flags] [task] [task arguments...]",
		Short: "A task runner for projects configured with poe tasks",
		Long: "Poe runs tasks declared in pyproject.toml, poe_tasks.toml, poe_tasks.yaml\n" +
			"or poe_tasks.json, merged with every config they include.\n" +
			"Run without a task to list the configured tasks.",
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &flags, args)
		},
	}
	root.SetVersionTemplate("poe version {{.Version}}\n")
	root.Flags().SetInterspersed(false)

	root.Flags().StringVar(&flags.root, "root", "", "project root to use instead of searching upward (env POE_PROJECT_DIR)")
	root.Flags().StringVar(&flags.configDir, "config-dir", "", "directory holding poe's config.yaml (env POE_CONFIG_DIR)")
	root.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output")
	root.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "only log errors")
	root.Flags().BoolVarP(&flags.dryRun, "dry-run", "d", false, "print the commands a task would run without running them")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return
	}
	code := exitCode(err)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(code)
}

func run(cmd *cobra.Command, flags *rootFlags, args []string) error {
	stderr := cmd.ErrOrStderr()

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := settings.Load(configDir)
	if err != nil {
		return err
	}

	level := logging.LogLevel(cfg.LogLevel)
	switch {
	case flags.verbose:
		level = logging.DebugLevel
	case flags.quiet:
		level = logging.ErrorLevel
	}
	log := logging.NewLogger(&logging.Config{Level: level, Output: stderr}).With("run", uuid.NewString())
	ctx := logging.ContextWithLogger(cmd.Context(), log)

	model, err := loadProject(flags, cfg, log)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		printTasks(stderr, cmd.UsageString(), model.Registry)
		return nil
	}

	d := dispatch.New(model, environ.NewResolver(afero.NewOsFs(), os.Environ()), nil, dispatch.Options{
		Shell:  cfg.Shell,
		Python: cfg.Python,
		DryRun: flags.dryRun,
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: stderr,
	})
	return d.Run(ctx, args[0], args[1:])
}

// loadProject locates the entry config and resolves the include graph.
func loadProject(flags *rootFlags, cfg *settings.Settings, log logging.Logger) (*types.ProjectModel, error) {
	cwd, err := paths.ProcessCwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	override, err := paths.ResolveRootOverride(flags.root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if override == "" && cfg.ProjectDir != "" {
		if override, err = filepath.Abs(cfg.ProjectDir); err != nil {
			return nil, fmt.Errorf("resolve root: %w", err)
		}
	}

	loader := config.NewLoader(afero.NewOsFs())
	entry, err := project.NewLocator(loader).Locate(override, cwd)
	if err != nil {
		return nil, err
	}
	log.Debug("entry config", "path", entry.Path)

	model, err := project.NewResolver(loader, log).Resolve(entry, cwd)
	if err != nil {
		return nil, err
	}
	log.Debug("project resolved", "root", model.Root, "configs", len(model.Nodes), "tasks", model.Registry.Len())
	return model, nil
}

// exitCode maps an error to the process exit code. A failing task's own
// exit status is passed through.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	for _, userErr := range []error{
		types.ErrConfigNotFound,
		types.ErrConfigParse,
		types.ErrTaskNotFound,
		types.ErrInvalidTask,
		types.ErrInvalidEnvEntry,
		types.ErrInvalidEnvFile,
		types.ErrUndefinedVariable,
		types.ErrUnknownTaskType,
		types.ErrRefCycle,
		settings.ErrInvalidSettings,
	} {
		if errors.Is(err, userErr) {
			return exitUserError
		}
	}
	return exitSysError
}
