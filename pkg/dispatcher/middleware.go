package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/registry"
)

const (
	middlewareLogPrefix = "dispatcher:middleware"
	meterName           = "github.com/morezero/workspace-bus/pkg/dispatcher"
)

// Next continues the middleware chain.
type Next func(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error)

// Middleware wraps a handler invocation. It must call next unless it
// deliberately short-circuits the command.
type Middleware func(ctx context.Context, id command.ID, payload commsutil.Payload, next Next) (commsutil.Payload, error)

// chain composes middleware right to left so mws[0] is the outermost wrapper.
func chain(id command.ID, h registry.Handler, mws []Middleware) Next {
	next := Next(h.Invoke)
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error) {
			return mw(ctx, id, payload, inner)
		}
	}
	return next
}

// Logging logs every command with its outcome and duration.
func Logging() Middleware {
	return func(ctx context.Context, id command.ID, payload commsutil.Payload, next Next) (commsutil.Payload, error) {
		start := time.Now()
		out, err := next(ctx, payload)
		elapsed := time.Since(start)

		caller := CallerEmail(ctx)
		if err != nil {
			slog.Info(fmt.Sprintf("%s - command=%s caller=%s elapsed=%s error=%v", middlewareLogPrefix, id, caller, elapsed, err))
		} else {
			slog.Debug(fmt.Sprintf("%s - command=%s caller=%s elapsed=%s ok", middlewareLogPrefix, id, caller, elapsed))
		}
		return out, err
	}
}

// Recover converts a panic in any inner middleware or the handler into an
// INTERNAL handler error. The dispatcher recovers on its own as well; this
// middleware lets outer middleware observe the failure as a regular error.
func Recover() Middleware {
	return func(ctx context.Context, id command.ID, payload commsutil.Payload, next Next) (out commsutil.Payload, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(fmt.Sprintf("%s - recovered panic in %s: %v", middlewareLogPrefix, id, r))
				out, err = nil, cmderr.Internal("handler %s panicked: %v", id, r)
			}
		}()
		return next(ctx, payload)
	}
}

// Metrics records per-command duration and outcome using the global OTel
// MeterProvider. Without a configured provider the instruments are no-ops.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter records metrics with the provided meter.
//
// Instruments:
//   - workspace_bus.command.duration (Float64Histogram, seconds)
//   - workspace_bus.command.executions (Int64Counter)
//
// Both carry the attributes command and status ("ok" or the error kind).
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, err := meter.Float64Histogram(
		"workspace_bus.command.duration",
		metric.WithDescription("Duration of command handling in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - duration histogram: %v", middlewareLogPrefix, err))
	}
	executions, err := meter.Int64Counter(
		"workspace_bus.command.executions",
		metric.WithDescription("Total number of handled commands"),
	)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - executions counter: %v", middlewareLogPrefix, err))
	}

	return func(ctx context.Context, id command.ID, payload commsutil.Payload, next Next) (commsutil.Payload, error) {
		start := time.Now()
		out, err := next(ctx, payload)

		status := "ok"
		if err != nil {
			status = string(cmderr.From(err).Kind)
		}
		attrs := metric.WithAttributes(
			attribute.String("command", id.String()),
			attribute.String("status", status),
		)
		if duration != nil {
			duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if executions != nil {
			executions.Add(ctx, 1, attrs)
		}
		return out, err
	}
}
