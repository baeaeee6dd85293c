// Package print provides a debug task kind that echoes its parameters to
// stdout and returns them as output.
package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the print kind.
type Input struct {
	Value map[string]string `cty:"value,optional"`
}

// run is the handler for the 'print' task kind.
func run(ctx context.Context, input *Input) (cty.Value, error) {
	ctxlog.FromContext(ctx).Info("Printing value", "entries", len(input.Value))

	if len(input.Value) == 0 {
		fmt.Println("      (null)")
		return cty.EmptyObjectVal, nil
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Value))
	for k := range input.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	echoed := make(map[string]cty.Value, len(input.Value))
	for _, k := range keys {
		fmt.Printf("      %s = %q\n", k, input.Value[k])
		echoed[k] = cty.StringVal(input.Value[k])
	}

	return cty.ObjectVal(echoed), nil
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("print", &registry.Kind{
		NewInput: func() any { return new(Input) },
		Fn:       run,
	})
}
