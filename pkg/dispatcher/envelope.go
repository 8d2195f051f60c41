// Package dispatcher routes commands to registered handlers and wraps their outcome in a Response envelope.
package dispatcher

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/commsutil"
)

// Response is the uniform result of a dispatch: either Ok with a payload or
// a failure with an error. Check Ok before reading Payload.
type Response struct {
	Ok      bool              `json:"ok"`
	Payload commsutil.Payload `json:"payload,omitempty"`
	Error   *cmderr.Error     `json:"error,omitempty"`
}

// Success builds an Ok envelope. A nil payload is valid for error-only commands.
func Success(payload commsutil.Payload) *Response {
	return &Response{Ok: true, Payload: payload}
}

// Failure builds a failed envelope from any error.
func Failure(err error) *Response {
	ce := cmderr.From(err)
	if ce == nil {
		ce = cmderr.Internal("failure without error")
	}
	return &Response{Ok: false, Error: ce}
}

// Err returns the envelope's error, or nil on success.
func (r *Response) Err() error {
	if r.Ok {
		return nil
	}
	if r.Error == nil {
		return cmderr.Internal("failed response without error detail")
	}
	return r.Error
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	UserEmail     string `json:"userEmail,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type invocationKey struct{}

// WithInvocation attaches the caller's invocation context to ctx.
func WithInvocation(ctx context.Context, inv *InvocationContext) context.Context {
	if inv == nil {
		return ctx
	}
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation context attached to ctx, or nil.
func InvocationFrom(ctx context.Context) *InvocationContext {
	inv, _ := ctx.Value(invocationKey{}).(*InvocationContext)
	return inv
}

// CallerEmail returns the email of the calling user, or "" when the call is anonymous.
func CallerEmail(ctx context.Context) string {
	if inv := InvocationFrom(ctx); inv != nil {
		return inv.UserEmail
	}
	return ""
}
