package project

import "github.com/mesh-intelligence/poe/pkg/types"

// applyDefaultTypes rebuilds the registry with every untyped task given its
// effective type. Registry order is kept.
func applyDefaultTypes(model *types.ProjectModel, merged *types.Registry) *types.Registry {
	projectDefault := firstDeclaredDefault(model.Nodes)
	out := types.NewRegistry()
	for _, task := range merged.Tasks() {
		out.Add(withDefaultType(model, task, projectDefault))
	}
	return out
}

func ancestryDefault(model *types.ProjectModel, origin *types.ConfigNode) types.TaskType {
	for _, n := range model.Ancestry(origin) {
		if n.DefaultTaskType != "" {
			return n.DefaultTaskType
		}
	}
	return ""
}

func firstDeclaredDefault(nodes []*types.ConfigNode) types.TaskType {
	for _, n := range nodes {
		if n.DefaultTaskType != "" {
			return n.DefaultTaskType
		}
	}
	return ""
}

func withDefaultType(model *types.ProjectModel, task *types.TaskDefinition, projectDefault types.TaskType) *types.TaskDefinition {
	needsType := task.Type == ""
	needsItems := false
	for _, item := range task.Items {
		if item.Type == "" {
			needsItems = true
			break
		}
	}
	if !needsType && !needsItems {
		return task
	}

	typ := task.Type
	if needsType {
		typ = ancestryDefault(model, task.Origin)
		if typ == "" {
			typ = projectDefault
		}
		if typ == "" {
			typ = types.FallbackTaskType
		}
	}
	typed := task.WithType(typ)
	if needsItems {
		typed.Items = make([]*types.TaskDefinition, len(task.Items))
		for i, item := range task.Items {
			typed.Items[i] = withDefaultType(model, item, projectDefault)
		}
	}
	return typed
}
