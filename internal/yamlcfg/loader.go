// Package yamlcfg provides the YAML implementation of the config.Loader
// interface, mirroring the HCL surface for users who prefer YAML manifests.
package yamlcfg

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pipedag/pipedag/internal/config"
	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/fsutil"
)

// Loader loads .yaml pipeline definition files.
type Loader struct{}

// NewLoader creates a new YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// document is the on-disk YAML shape.
type document struct {
	Pipelines []pipeline `yaml:"pipelines"`
}

type pipeline struct {
	Name  string     `yaml:"name"`
	Tasks []taskDecl `yaml:"tasks"`
}

type taskDecl struct {
	Kind      string         `yaml:"kind"`
	Name      string         `yaml:"name"`
	Params    map[string]any `yaml:"params"`
	DependsOn []string       `yaml:"depends_on"`
	Retries   int            `yaml:"retries"`
}

// Load implements config.Loader. Each path may be a file or a directory
// searched recursively for .yaml files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := &config.Model{}

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, ".yaml")
		if err != nil {
			return nil, fmt.Errorf("resolving pipeline path %q: %w", path, err)
		}
		if len(files) == 0 {
			logger.Warn("No .yaml pipeline files found in path.", "path", path)
			continue
		}

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", file, err)
			}
			if err := l.parseInto(data, model); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", file, err)
			}
			logger.Debug("Loaded pipeline definitions from file.", "file", file)
		}
	}

	logger.Debug("YAML loading complete.", "pipelines", len(model.Pipelines))
	return model, nil
}

// Parse translates in-memory YAML source into a model.
func (l *Loader) Parse(ctx context.Context, src []byte) (*config.Model, error) {
	model := &config.Model{}
	if err := l.parseInto(src, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (l *Loader) parseInto(src []byte, model *config.Model) error {
	var doc document
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return err
	}

	for _, p := range doc.Pipelines {
		out := &config.Pipeline{Name: p.Name}
		for _, t := range p.Tasks {
			params, err := paramsToCty(t.Params)
			if err != nil {
				return fmt.Errorf("pipeline %q task %q.%q: %w", p.Name, t.Kind, t.Name, err)
			}
			out.Tasks = append(out.Tasks, &config.Task{
				Kind:      t.Kind,
				Name:      t.Name,
				Params:    params,
				DependsOn: t.DependsOn,
				Retries:   t.Retries,
			})
		}
		model.Pipelines = append(model.Pipelines, out)
	}
	return nil
}
