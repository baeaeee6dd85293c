// Package env_vars provides a task kind that captures the process
// environment as output for downstream tasks.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// run is the handler for the 'env_vars' task kind.
func run(ctx context.Context, _ *struct{}) (cty.Value, error) {
	envMap := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = cty.StringVal(pair[1])
		}
	}
	if len(envMap) == 0 {
		return cty.ObjectVal(map[string]cty.Value{"all": cty.EmptyObjectVal}), nil
	}

	return cty.ObjectVal(map[string]cty.Value{
		"all": cty.ObjectVal(envMap),
	}), nil
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("env_vars", &registry.Kind{
		// No parameters.
		Fn: run,
	})
}
