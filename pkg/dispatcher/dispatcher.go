package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/registry"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes commands to handlers resolved from a Registry.
type Dispatcher struct {
	registry      *registry.Registry
	middleware    []Middleware
	onForgetError func(id command.ID, err *cmderr.Error)
	inflight      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware appends middleware. The first middleware is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, mw...)
	}
}

// WithForgetErrorHook registers a callback for failures of fire-and-forget dispatches.
func WithForgetErrorHook(fn func(id command.ID, err *cmderr.Error)) Option {
	return func(d *Dispatcher) {
		d.onForgetError = fn
	}
}

// NewDispatcher creates a new Dispatcher over an already built registry.
func NewDispatcher(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: reg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch resolves id, runs its handler on a separate goroutine and waits for
// the outcome. A nil payload means the command carries no request value.
//
// The dispatcher imposes no timeout. If ctx ends first the caller gets an
// ABANDONED failure, while the handler runs to completion on a context that is
// detached from ctx's cancellation. The handler is invoked at most once.
func (d *Dispatcher) Dispatch(ctx context.Context, id command.ID, payload commsutil.Payload) *Response {
	slog.Debug(fmt.Sprintf("%s - command=%s payload=%dB", logPrefix, id, len(payload)))

	h, err := d.registry.Resolve(id)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %v", logPrefix, err))
		return Failure(err)
	}

	done := make(chan *Response, 1)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		done <- d.invoke(context.WithoutCancel(ctx), id, h, payload)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		slog.Warn(fmt.Sprintf("%s - caller stopped waiting for %s: %v", logPrefix, id, ctx.Err()))
		return Failure(cmderr.New(cmderr.KindAbandoned, "caller stopped waiting for %s: %v", id, ctx.Err()))
	}
}

// DispatchAndForget performs the same resolution and invocation as Dispatch
// without making the caller wait. Failures are logged and handed to the
// forget-error hook, never returned.
func (d *Dispatcher) DispatchAndForget(ctx context.Context, id command.ID, payload commsutil.Payload) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		resp := d.Dispatch(context.WithoutCancel(ctx), id, payload)
		if resp.Ok {
			return
		}
		slog.Warn(fmt.Sprintf("%s - fire-and-forget %s failed: %v", logPrefix, id, resp.Error))
		if d.onForgetError != nil {
			d.onForgetError(id, resp.Error)
		}
	}()
}

// Wait blocks until every handler invocation started so far has finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// invoke runs the middleware chain and the handler, converting panics into
// INTERNAL handler errors so a faulty handler never takes the process down.
func (d *Dispatcher) invoke(ctx context.Context, id command.ID, h registry.Handler, payload commsutil.Payload) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - handler %s panicked: %v\n%s", logPrefix, id, r, debug.Stack()))
			resp = Failure(cmderr.Internal("handler %s panicked: %v", id, r))
		}
	}()

	out, err := chain(id, h, d.middleware)(ctx, payload)
	if err != nil {
		return Failure(err)
	}
	return Success(out)
}
