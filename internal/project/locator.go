// Package project locates the entry config of a poe project and merges it
// with everything it includes into a single ProjectModel.
package project

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/poe/internal/config"
	"github.com/mesh-intelligence/poe/internal/paths"
	"github.com/mesh-intelligence/poe/pkg/types"
)

// Locator finds the entry ConfigNode for an invocation.
type Locator struct {
	loader *config.Loader
}

// NewLocator returns a Locator reading configs through loader.
func NewLocator(loader *config.Loader) *Locator {
	return &Locator{loader: loader}
}

// Locate returns the entry config node. With a non-empty override the
// config at that directory (or that exact file) is loaded and no search
// happens. Otherwise the search walks upward from cwd and stops at the
// first directory holding a recognized config source.
func (l *Locator) Locate(override, cwd string) (*types.ConfigNode, error) {
	if override != "" {
		return l.loadOverride(override)
	}
	for _, dir := range paths.Ancestors(cwd) {
		path, err := l.loader.FindInDir(dir)
		if err != nil {
			return nil, err
		}
		if path != "" {
			return l.loader.Load(path)
		}
	}
	return nil, fmt.Errorf("search from %s: %w", cwd, types.ErrConfigNotFound)
}

func (l *Locator) loadOverride(path string) (*types.ConfigNode, error) {
	fs := l.loader.Fs()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("root %s: %w", path, types.ErrConfigNotFound)
	}
	isDir, err := afero.IsDir(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !isDir {
		return l.loader.Load(path)
	}
	found, err := l.loader.FindInDir(path)
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, fmt.Errorf("root %s: %w", path, types.ErrConfigNotFound)
	}
	return l.loader.Load(found)
}
