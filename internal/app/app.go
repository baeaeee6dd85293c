// Package app encapsulates application wiring: configuration, logging,
// module registration, and the run lifecycle tying the loader, scheduler,
// and worker pool together.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pipedag/pipedag/internal/config"
	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// PipelinePath is a .hcl/.yaml file or a directory of definition files.
	PipelinePath string
	// Format selects the definition loader: "hcl" or "yaml".
	Format          string
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
	WorkerCount     int
	QueueSize       int
	TaskTimeout     time.Duration
	StallTimeout    time.Duration
	DefaultRetries  int
	RetryDelay      time.Duration
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		// A failure to load definitions is a fatal startup error.
		panic(fmt.Errorf("failed to load pipeline definitions: %w", err))
	}
	logger.Debug("Pipeline definitions loaded into unified model.", "pipelines", len(model.Pipelines))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All task kind modules registered.", "count", len(modules))

	if err := validateKinds(model, reg); err != nil {
		// A mismatch between definitions and compiled kinds is a startup
		// error too; it must surface before any task runs.
		panic(err)
	}
	logger.Debug("Task kind validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// validateKinds checks that every task kind named in the model has a
// registered Go implementation.
func validateKinds(model *config.Model, reg *registry.Registry) error {
	for _, p := range model.Pipelines {
		for _, t := range p.Tasks {
			if _, ok := reg.Kind(t.Kind); !ok {
				return fmt.Errorf("pipeline %q: task %q uses unregistered kind %q (registered: %v)",
					p.Name, t.Ref(), t.Kind, reg.KindNames())
			}
		}
	}
	return nil
}
