// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It is responsible for file discovery, parsing, and translation
// of pipeline blocks into the format-agnostic model.
package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/config"
	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/fsutil"
	"github.com/pipedag/pipedag/internal/schema"
)

// Loader loads .hcl pipeline definition files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load implements config.Loader. Each path may be a file or a directory
// searched recursively for .hcl files; all pipelines found are merged into
// one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := &config.Model{}
	parser := hclparse.NewParser()

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("resolving pipeline path %q: %w", path, err)
		}
		if len(files) == 0 {
			logger.Warn("No .hcl pipeline files found in path.", "path", path)
			continue
		}

		for _, file := range files {
			hclFile, diags := parser.ParseHCLFile(file)
			if diags.HasErrors() {
				return nil, fmt.Errorf("parsing %s: %w", file, diags)
			}
			if err := l.translateFile(hclFile.Body, model); err != nil {
				return nil, fmt.Errorf("translating %s: %w", file, err)
			}
			logger.Debug("Loaded pipeline definitions from file.", "file", file)
		}
	}

	logger.Debug("HCL loading complete.", "pipelines", len(model.Pipelines))
	return model, nil
}

// Parse translates in-memory HCL source into a model. Used by tests and by
// callers that already hold file contents.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	model := &config.Model{}
	if err := l.translateFile(hclFile.Body, model); err != nil {
		return nil, fmt.Errorf("translating %s: %w", filename, err)
	}
	return model, nil
}

// translateFile decodes one file body and appends its pipelines to the model.
func (l *Loader) translateFile(body hcl.Body, model *config.Model) error {
	var cfg schema.Config
	if diags := gohcl.DecodeBody(body, nil, &cfg); diags.HasErrors() {
		return diags
	}

	for _, p := range cfg.Pipelines {
		pipeline := &config.Pipeline{Name: p.Name}
		for _, t := range p.Tasks {
			params, err := evalParams(t.Params)
			if err != nil {
				return fmt.Errorf("pipeline %q task %q.%q: %w", p.Name, t.Kind, t.Name, err)
			}
			pipeline.Tasks = append(pipeline.Tasks, &config.Task{
				Kind:      t.Kind,
				Name:      t.Name,
				Params:    params,
				DependsOn: t.DependsOn,
				Retries:   t.Retries,
			})
		}
		model.Pipelines = append(model.Pipelines, pipeline)
	}
	return nil
}

// evalParams evaluates a params expression into a flat value map. Pipeline
// parameters are literals; there is no cross-task templating context.
func evalParams(expr hcl.Expression) (map[string]cty.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", val.Type().FriendlyName())
	}
	return val.AsValueMap(), nil
}
