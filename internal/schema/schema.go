// Package schema holds the HCL block structures for pipeline definition
// files, as decoded by gohcl before translation into the agnostic config
// model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Task represents a `task` block inside a pipeline: one step kind bound to
// parameters. Params stays an expression here; the loader evaluates it.
type Task struct {
	Kind      string         `hcl:"kind,label"`
	Name      string         `hcl:"name,label"`
	Params    hcl.Expression `hcl:"params,optional"`
	DependsOn []string       `hcl:"depends_on,optional"`
	Retries   int            `hcl:"retries,optional"`
}

// Pipeline represents a top-level `pipeline` block.
type Pipeline struct {
	Name  string  `hcl:"name,label"`
	Tasks []*Task `hcl:"task,block"`
}

// Config represents the top-level structure of a pipeline definition file.
type Config struct {
	Pipelines []*Pipeline `hcl:"pipeline,block"`
}
