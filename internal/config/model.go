// Package config defines the format-agnostic pipeline model and the Loader
// interface its concrete formats (HCL, YAML) implement. The model is the
// boundary between definition files and the scheduler: past this point
// nothing knows or cares which syntax the user wrote.
package config

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/task"
)

// Loader loads pipeline definitions from one or more paths into the model.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified, format-agnostic view of all loaded definitions.
type Model struct {
	Pipelines []*Pipeline
}

// Pipeline is one named batch of tasks scheduled together under a single
// resolver.
type Pipeline struct {
	Name  string
	Tasks []*Task
}

// Task is one declared task: a step kind with bound parameters and
// name-based dependency references.
type Task struct {
	// Kind names the registered step implementation.
	Kind string
	// Name is the instance name, unique per pipeline in combination with Kind.
	Name string
	// Params are the bound parameters as cty values.
	Params map[string]cty.Value
	// DependsOn references other tasks in the same pipeline as "kind.name".
	DependsOn []string
	// Retries is the transient-failure budget for this task.
	Retries int
}

// Ref is the "kind.name" reference form used in depends_on.
func (t *Task) Ref() string {
	return t.Kind + "." + t.Name
}

// BuildSpecs translates each pipeline into scheduler-ready task specs,
// resolving "kind.name" references into task identities. Tasks with
// identical kind and params collapse to one identity even under different
// names; references to either name resolve to the shared task.
func (m *Model) BuildSpecs() (map[string][]task.Spec, error) {
	out := make(map[string][]task.Spec, len(m.Pipelines))

	for _, p := range m.Pipelines {
		keysByRef := make(map[string]task.Key, len(p.Tasks))
		for _, t := range p.Tasks {
			ref := t.Ref()
			if _, dup := keysByRef[ref]; dup {
				return nil, fmt.Errorf("pipeline %q: duplicate task %q", p.Name, ref)
			}
			keysByRef[ref] = task.Identity(t.Kind, t.Params)
		}

		specs := make([]task.Spec, 0, len(p.Tasks))
		for _, t := range p.Tasks {
			var deps []task.Key
			for _, ref := range t.DependsOn {
				key, ok := keysByRef[ref]
				if !ok {
					return nil, fmt.Errorf("pipeline %q: task %q depends on unknown task %q", p.Name, t.Ref(), ref)
				}
				deps = append(deps, key)
			}
			specs = append(specs, task.Spec{
				Kind:      t.Kind,
				Name:      t.Name,
				Params:    t.Params,
				DependsOn: deps,
				Retries:   t.Retries,
			})
		}
		out[p.Name] = specs
	}
	return out, nil
}
