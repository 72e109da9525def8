// Package config parses poe config files (pyproject.toml, poe_tasks.toml,
// poe_tasks.yaml, poe_tasks.json) into ConfigNode values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// Loader reads config files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader returns a Loader reading from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Fs returns the filesystem the loader reads from.
func (l *Loader) Fs() afero.Fs {
	return l.fs
}

// Load parses the config file at path. The path is made absolute first.
// Syntax and shape errors wrap types.ErrConfigParse.
func (l *Loader) Load(path string) (*types.ConfigNode, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	section, err := l.section(abs)
	if err != nil {
		return nil, err
	}
	if section == nil {
		return nil, fmt.Errorf("load %s: %w: no [tool.poe] section", abs, types.ErrConfigParse)
	}

	node, err := decodeNode(abs, filepath.Dir(abs), section)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", abs, types.ErrConfigParse, err)
	}
	return node, nil
}

// FindInDir returns the path of the first recognized config source in dir,
// or "" when there is none. A pyproject.toml only counts when it has a
// [tool.poe] section.
func (l *Loader) FindInDir(dir string) (string, error) {
	for _, name := range types.ConfigFileNames {
		path := filepath.Join(dir, name)
		ok, err := afero.Exists(l.fs, path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if !ok {
			continue
		}
		if isDir, _ := afero.IsDir(l.fs, path); isDir {
			continue
		}
		if name != types.PyprojectFile {
			return path, nil
		}
		section, err := l.section(path)
		if err != nil {
			return "", err
		}
		if section != nil {
			return path, nil
		}
	}
	return "", nil
}

// section reads path and returns the table holding poe settings: tool.poe
// for pyproject.toml, the whole document otherwise. A pyproject.toml
// without the section yields nil.
func (l *Loader) section(path string) (*Table, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, types.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", path, types.ErrConfigParse, err)
	}

	if filepath.Base(path) != types.PyprojectFile {
		return doc, nil
	}
	raw, ok := doc.Lookup("tool", "poe")
	if !ok {
		return nil, nil
	}
	section, ok := raw.(*Table)
	if !ok {
		return nil, fmt.Errorf("parse %s: %w: tool.poe must be a table", path, types.ErrConfigParse)
	}
	return section, nil
}

func parse(path string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data)
	case ".yaml", ".yml", ".json":
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}
