package config

import (
	"fmt"
	"strconv"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// Keys of the poe section.
const (
	keyTasks           = "tasks"
	keyEnv             = "env"
	keyEnvFile         = "envfile"
	keyInclude         = "include"
	keyDefaultTaskType = "default_task_type"
)

// taskOptions holds the scalar options a table-form task may carry. Options
// this package does not act on are ignored.
type taskOptions struct {
	Help        string   `mapstructure:"help"`
	Cwd         string   `mapstructure:"cwd"`
	Interpreter []string `mapstructure:"interpreter"`
}

// includeOptions is the table form of an include declaration.
type includeOptions struct {
	Path string `mapstructure:"path"`
	Cwd  string `mapstructure:"cwd"`
}

// envRef is the table form of an env value or env file declaration.
type envRef struct {
	Copy       string `mapstructure:"copy"`
	Path       string `mapstructure:"path"`
	RelativeTo string `mapstructure:"relative_to"`
}

func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if t, ok := input.(*Table); ok {
		input = t.Plain()
	}
	return dec.Decode(input)
}

// decodeNode builds a ConfigNode from the poe section of a config file.
func decodeNode(path, dir string, section *Table) (*types.ConfigNode, error) {
	node := &types.ConfigNode{Path: path, Dir: dir}

	if raw, ok := section.Get(keyDefaultTaskType); ok {
		s, ok := raw.(string)
		if !ok || !types.TaskType(s).Valid() {
			return nil, fmt.Errorf("%s: %w %v", keyDefaultTaskType, types.ErrUnknownTaskType, raw)
		}
		node.DefaultTaskType = types.TaskType(s)
	}

	if raw, ok := section.Get(keyInclude); ok {
		includes, err := decodeIncludes(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keyInclude, err)
		}
		node.Includes = includes
	}

	env, err := decodeEnvDecls(section)
	if err != nil {
		return nil, err
	}
	node.Env = env

	if raw, ok := section.Get(keyTasks); ok {
		tasks, ok := raw.(*Table)
		if !ok {
			return nil, fmt.Errorf("%s: expected a table, got %s", keyTasks, describe(raw))
		}
		for _, name := range tasks.Keys() {
			v, _ := tasks.Get(name)
			task, err := decodeTask(name, v, node)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", name, err)
			}
			node.Tasks = append(node.Tasks, task)
		}
	}
	return node, nil
}

func decodeTask(name string, raw any, origin *types.ConfigNode) (*types.TaskDefinition, error) {
	task := &types.TaskDefinition{Name: name, Origin: origin}
	switch v := raw.(type) {
	case string:
		task.Body = v
	case []any:
		task.Type = types.TaskSequence
		items, err := decodeItems(name, v, origin)
		if err != nil {
			return nil, err
		}
		task.Items = items
	case *Table:
		if err := decodeTaskTable(task, v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported value %s", types.ErrInvalidTask, describe(raw))
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

func decodeTaskTable(task *types.TaskDefinition, tbl *Table) error {
	var found []types.TaskType
	for _, typ := range types.TaskTypes {
		if _, ok := tbl.Get(string(typ)); ok {
			found = append(found, typ)
		}
	}
	if len(found) > 1 {
		return fmt.Errorf("%w: declares more than one type %v", types.ErrInvalidTask, found)
	}

	if len(found) == 1 {
		task.Type = found[0]
		body, _ := tbl.Get(string(task.Type))
		if task.Type.Composite() {
			list, ok := body.([]any)
			if !ok {
				return fmt.Errorf("%w: %s must be an array", types.ErrInvalidTask, task.Type)
			}
			items, err := decodeItems(task.Name, list, task.Origin)
			if err != nil {
				return err
			}
			task.Items = items
		} else {
			s, ok := body.(string)
			if !ok {
				return fmt.Errorf("%w: %s must be a string", types.ErrInvalidTask, task.Type)
			}
			task.Body = s
		}
	}

	var opts taskOptions
	if err := decodeInto(tbl, &opts); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidTask, err)
	}
	task.Help = opts.Help
	task.ExecDir = opts.Cwd
	if len(opts.Interpreter) > 0 {
		task.Interpreter = opts.Interpreter[0]
	}

	env, err := decodeEnvDecls(tbl)
	if err != nil {
		return err
	}
	task.Env = env
	return nil
}

// decodeItems decodes the sub-tasks of a sequence or parallel task. Bare
// strings name other tasks.
func decodeItems(parent string, list []any, origin *types.ConfigNode) ([]*types.TaskDefinition, error) {
	items := make([]*types.TaskDefinition, 0, len(list))
	for i, raw := range list {
		name := parent + "[" + strconv.Itoa(i) + "]"
		if s, ok := raw.(string); ok {
			items = append(items, &types.TaskDefinition{Name: name, Type: types.TaskRef, Body: s, Origin: origin})
			continue
		}
		tbl, ok := raw.(*Table)
		if !ok {
			return nil, fmt.Errorf("%w: item %d: unsupported value %s", types.ErrInvalidTask, i, describe(raw))
		}
		item := &types.TaskDefinition{Name: name, Origin: origin}
		if err := decodeTaskTable(item, tbl); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// decodeEnvDecls reads the envfile and env keys of tbl. Env file entries
// come first so inline values can build on them.
func decodeEnvDecls(tbl *Table) ([]types.EnvEntry, error) {
	var entries []types.EnvEntry
	if raw, ok := tbl.Get(keyEnvFile); ok {
		files, err := decodeEnvFiles(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keyEnvFile, err)
		}
		entries = append(entries, files...)
	}
	if raw, ok := tbl.Get(keyEnv); ok {
		env, ok := raw.(*Table)
		if !ok {
			return nil, fmt.Errorf("%s: %w: expected a table, got %s", keyEnv, types.ErrInvalidEnvEntry, describe(raw))
		}
		for _, key := range env.Keys() {
			v, _ := env.Get(key)
			entry, err := decodeEnvValue(key, v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", keyEnv, key, err)
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func decodeEnvValue(key string, raw any) (types.EnvEntry, error) {
	switch v := raw.(type) {
	case string:
		return types.Literal(key, v), nil
	case bool, int64, float64, int, uint64:
		return types.Literal(key, fmt.Sprint(v)), nil
	case *Table:
		var ref envRef
		if err := decodeInto(v, &ref); err != nil {
			return types.EnvEntry{}, fmt.Errorf("%w: %v", types.ErrInvalidEnvEntry, err)
		}
		var entry types.EnvEntry
		switch {
		case ref.Copy != "" && ref.Path == "":
			entry = types.CopyOf(key, ref.Copy)
		case ref.Path != "" && ref.Copy == "":
			frame := types.Frame(ref.RelativeTo)
			if frame == "" {
				frame = types.FrameSourceConfig
			}
			entry = types.PathIn(key, frame, ref.Path)
		default:
			return types.EnvEntry{}, fmt.Errorf("%w: expected exactly one of copy or path", types.ErrInvalidEnvEntry)
		}
		return entry, entry.Validate()
	default:
		return types.EnvEntry{}, fmt.Errorf("%w: unsupported value %s", types.ErrInvalidEnvEntry, describe(raw))
	}
}

func decodeEnvFiles(raw any) ([]types.EnvEntry, error) {
	switch v := raw.(type) {
	case string:
		return []types.EnvEntry{types.EnvFileIn(types.FrameSourceConfig, v)}, nil
	case *Table:
		var ref envRef
		if err := decodeInto(v, &ref); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidEnvEntry, err)
		}
		frame := types.Frame(ref.RelativeTo)
		if frame == "" {
			frame = types.FrameSourceConfig
		}
		entry := types.EnvFileIn(frame, ref.Path)
		return []types.EnvEntry{entry}, entry.Validate()
	case []any:
		var out []types.EnvEntry
		for _, item := range v {
			entries, err := decodeEnvFiles(item)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %s", types.ErrInvalidEnvEntry, describe(raw))
	}
}

func decodeIncludes(raw any) ([]types.IncludeSpec, error) {
	switch v := raw.(type) {
	case string:
		return []types.IncludeSpec{{Path: v}}, nil
	case *Table:
		var opts includeOptions
		if err := decodeInto(v, &opts); err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("include table requires a path")
		}
		return []types.IncludeSpec{{Path: opts.Path, ExecDir: opts.Cwd}}, nil
	case []any:
		var out []types.IncludeSpec
		for _, item := range v {
			specs, err := decodeIncludes(item)
			if err != nil {
				return nil, err
			}
			out = append(out, specs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %s", describe(raw))
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Table:
		return "table"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
