// Package socketio_emit provides a task kind that emits a pipeline event to
// a Socket.IO endpoint and waits for an acknowledging event, typically used
// as a terminal notification step that depends on the rest of the pipeline.
package socketio_emit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters for the socketio_emit kind.
type Input struct {
	URL                string            `cty:"url"`
	Namespace          string            `cty:"namespace,optional"`
	EmitEvent          string            `cty:"emit_event"`
	EmitData           map[string]string `cty:"emit_data,optional"`
	AckEvent           string            `cty:"ack_event,optional"`
	InsecureSkipVerify bool              `cty:"insecure_skip_verify,optional"`
}

// opResult safely passes the listener outcome through the done channel.
type opResult struct {
	ack string
	err error
}

// run is the handler for the 'socketio_emit' task kind. Deadlines come from
// the worker pool's per-task timeout on ctx.
func run(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL, "emitEvent", input.EmitEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return cty.NilVal, task.Terminal(fmt.Errorf("parsing URL: %w", err))
	}

	var isConnected atomic.Bool
	done := make(chan opResult, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	emitData := make(map[string]any, len(input.EmitData))
	for k, v := range input.EmitData {
		emitData[k] = v
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected", "namespace", input.Namespace, "sid", io.Id())
		io.Emit(input.EmitEvent, emitData)
		if input.AckEvent == "" {
			// Fire and forget: delivery to the server is enough.
			done <- opResult{}
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		done <- opResult{err: task.Transient(fmt.Errorf("socket.io connect: %w", err))}
	})

	if input.AckEvent != "" {
		io.On(types.EventName(input.AckEvent), func(data ...any) {
			var ack string
			if len(data) > 0 {
				ack = fmt.Sprintf("%v", data[0])
			}
			done <- opResult{ack: ack}
		})
	}

	io.Connect()

	select {
	case <-ctx.Done():
		if isConnected.Load() {
			return cty.NilVal, task.Transient(fmt.Errorf("timed out waiting for event %q: %w", input.AckEvent, ctx.Err()))
		}
		return cty.NilVal, task.Transient(fmt.Errorf("timed out waiting for connection: %w", ctx.Err()))
	case res := <-done:
		if res.err != nil {
			return cty.NilVal, res.err
		}
		return cty.ObjectVal(map[string]cty.Value{
			"ack": cty.StringVal(res.ack),
		}), nil
	}
}

// Register registers the kind with the scheduler's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("socketio_emit", &registry.Kind{
		NewInput: func() any { return new(Input) },
		Fn:       run,
	})
}
