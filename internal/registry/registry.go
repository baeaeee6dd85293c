// Package registry provides the central glue between task kinds named in
// pipeline definitions and the compiled Go handlers that implement them.
//
// The registry is populated once at startup and then only read. Duplicate
// registration is a programmer error and panics immediately.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/task"
)

// DiscoverFunc generates downstream task specs from a succeeded task's
// output, extending the graph at runtime. It runs on the coordinator, so it
// must be cheap: expensive enumeration belongs in a worker-executed task
// whose output this function merely unpacks.
type DiscoverFunc func(ctx context.Context, output cty.Value) ([]task.Spec, error)

// Kind holds the compiled Go parts of one pipeline step implementation.
type Kind struct {
	// NewInput returns a pointer to a fresh input struct whose fields carry
	// `cty` tags matching the task's parameter names. Nil means the kind
	// takes no parameters.
	NewInput func() any
	// Fn is the execution handler with signature
	// func(ctx context.Context, input *T) (cty.Value, error).
	Fn any
	// Discover, if non-nil, is invoked after successful execution.
	Discover DiscoverFunc
}

// Module is the interface all step modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps kind names to their registered implementations.
type Registry struct {
	kinds map[string]*Kind
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// RegisterKind registers a step implementation under the given kind name.
func (r *Registry) RegisterKind(name string, k *Kind) {
	if _, exists := r.kinds[name]; exists {
		panic(fmt.Sprintf("task kind '%s' already registered", name))
	}
	slog.Debug("Registering task kind.", "kind", name)
	r.kinds[name] = k
}

// Kind looks up a registered kind by name.
func (r *Registry) Kind(name string) (*Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// KindNames returns the sorted names of all registered kinds.
func (r *Registry) KindNames() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute decodes the task's parameters into the kind's input struct and
// calls its handler. It is invoked from worker goroutines; the registry
// itself is read-only by then.
func (r *Registry) Execute(ctx context.Context, t *task.Task) (cty.Value, error) {
	kind, ok := r.kinds[t.Kind()]
	if !ok {
		return cty.NilVal, fmt.Errorf("unknown task kind '%s'", t.Kind())
	}

	var input any
	if kind.NewInput != nil {
		input = kind.NewInput()
		if err := DecodeParams(t.Params(), input); err != nil {
			return cty.NilVal, fmt.Errorf("decoding params for %s: %w", t.Key(), err)
		}
	}

	handlerFunc := reflect.ValueOf(kind.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx)}
	if input == nil {
		callArgs = append(callArgs, reflect.Zero(handlerFunc.Type().In(1)))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(input))
	}

	results := handlerFunc.Call(callArgs)
	outputVal, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return cty.NilVal, errResult.(error)
	}

	output, ok := outputVal.(cty.Value)
	if !ok {
		return cty.NilVal, fmt.Errorf("handler for kind '%s' returned non-cty.Value type: %T", t.Kind(), outputVal)
	}
	return output, nil
}
