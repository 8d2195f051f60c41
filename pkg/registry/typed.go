package registry

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/commsutil"
)

// Typed wraps a strongly typed handler function. The request payload is
// decoded as Req (a mismatch is reported as DECODE_ERROR before fn runs) and
// the returned Resp is encoded as the response payload.
func Typed[Req, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) Handler {
	return HandlerFunc(func(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error) {
		req, err := commsutil.Decode[Req](payload)
		if err != nil {
			return nil, err
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return commsutil.Encode(resp)
	})
}

// NoInput wraps a handler that takes no request. Any supplied payload is ignored.
func NoInput[Resp any](fn func(ctx context.Context) (Resp, error)) Handler {
	return HandlerFunc(func(ctx context.Context, _ commsutil.Payload) (commsutil.Payload, error) {
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return commsutil.Encode(resp)
	})
}

// NoOutput wraps a handler whose only response is success or an error.
func NoOutput[Req any](fn func(ctx context.Context, req Req) error) Handler {
	return HandlerFunc(func(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error) {
		req, err := commsutil.Decode[Req](payload)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, req)
	})
}

// Empty wraps a handler with neither request nor response payload.
func Empty(fn func(ctx context.Context) error) Handler {
	return HandlerFunc(func(ctx context.Context, _ commsutil.Payload) (commsutil.Payload, error) {
		return nil, fn(ctx)
	})
}
