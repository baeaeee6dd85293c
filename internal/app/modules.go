package app

import (
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/modules/collect_urls"
	"github.com/pipedag/pipedag/modules/env_vars"
	"github.com/pipedag/pipedag/modules/file_write"
	"github.com/pipedag/pipedag/modules/http_fetch"
	"github.com/pipedag/pipedag/modules/print"
	"github.com/pipedag/pipedag/modules/socketio_emit"
)

// coreModules is the default set of task kind modules registered when the
// caller does not supply its own.
var coreModules = []registry.Module{
	&collect_urls.Module{},
	&env_vars.Module{},
	&file_write.Module{},
	&http_fetch.Module{},
	&print.Module{},
	&socketio_emit.Module{},
}
