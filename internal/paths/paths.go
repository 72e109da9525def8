// Package paths resolves the directories poe works from: the user settings
// directory, an explicit project root override, and canonical forms of
// config paths used for include de-duplication.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user settings directory.
const AppName = "poe"

// Environment variable names for directory overrides.
const (
	EnvProjectDir = "POE_PROJECT_DIR"
	EnvConfigDir  = "POE_CONFIG_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific settings directory.
//
// Linux:   $XDG_CONFIG_HOME/poe (fallback ~/.config/poe)
// macOS:   ~/Library/Application Support/poe
// Windows: %APPDATA%/poe
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir returns the settings directory following the precedence
// chain: flag > POE_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveRootOverride returns the explicit project root, if any, following
// the precedence chain: flag > POE_PROJECT_DIR env. An empty result means
// the root is discovered by searching upward from the working directory.
func ResolveRootOverride(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvProjectDir); env != "" {
		return filepath.Abs(env)
	}
	return "", nil
}

// ProcessCwd returns the absolute working directory of the process.
func ProcessCwd() (string, error) {
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Abs(cwd)
}

// Canonical returns the key used to recognize a config file that is reached
// through more than one include path. Symlinks are resolved when the path
// exists on the host filesystem.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// Ancestors returns dir followed by each of its parents up to the
// filesystem root.
func Ancestors(dir string) []string {
	dir = filepath.Clean(dir)
	out := []string{dir}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return out
		}
		out = append(out, parent)
		dir = parent
	}
}
