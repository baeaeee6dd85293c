// Package http_fetch provides a task kind that fetches one URL and returns
// the response status and body as output.
package http_fetch

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the http_fetch kind.
type Input struct {
	URL    string `cty:"url"`
	Method string `cty:"method,optional"`
}

// run is the handler for the 'http_fetch' task kind.
func run(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)

	method := input.Method
	if method == "" {
		method = "GET"
	}
	logger.Info("Making HTTP request", "method", method)

	client := resty.New()
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Execute(method, input.URL)
	if err != nil {
		// Network-level failures are worth retrying.
		return cty.NilVal, task.Transient(fmt.Errorf("executing request: %w", err))
	}

	logger.Info("Received HTTP response", "status", resp.Status())

	if resp.StatusCode() >= 500 {
		return cty.NilVal, task.Transient(fmt.Errorf("server error: %s", resp.Status()))
	}
	if resp.IsError() {
		return cty.NilVal, task.Terminal(fmt.Errorf("request rejected: %s", resp.Status()))
	}

	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode())),
		"body":        cty.StringVal(resp.String()),
	}), nil
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("http_fetch", &registry.Kind{
		NewInput: func() any { return new(Input) },
		Fn:       run,
	})
}
