// Package file_write provides a task kind that persists an artifact to disk
// idempotently: the file is written to a temporary name in the target
// directory and renamed into place, so re-running the same task overwrites
// rather than duplicates and readers never observe a partial write.
package file_write

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the file_write kind.
type Input struct {
	Path    string `cty:"path"`
	Content string `cty:"content"`
}

// run is the handler for the 'file_write' task kind.
func run(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("path", input.Path)

	dir := filepath.Dir(input.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cty.NilVal, task.Transient(fmt.Errorf("creating artifact directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(input.Path)+".tmp-*")
	if err != nil {
		return cty.NilVal, task.Transient(fmt.Errorf("creating temp file: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(input.Content); err != nil {
		tmp.Close()
		return cty.NilVal, task.Transient(fmt.Errorf("writing artifact: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return cty.NilVal, task.Transient(fmt.Errorf("closing temp file: %w", err))
	}

	// Rename-after-write makes the overwrite atomic on the same filesystem.
	if err := os.Rename(tmpName, input.Path); err != nil {
		return cty.NilVal, task.Transient(fmt.Errorf("publishing artifact: %w", err))
	}

	logger.Info("Artifact written", "bytes", len(input.Content))
	return cty.ObjectVal(map[string]cty.Value{
		"path":  cty.StringVal(input.Path),
		"bytes": cty.NumberIntVal(int64(len(input.Content))),
	}), nil
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("file_write", &registry.Kind{
		NewInput: func() any { return new(Input) },
		Fn:       run,
	})
}
