// Package client is the typed facade over the command bus. It encodes
// requests, dispatches them and decodes the envelope into typed results.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
)

const logPrefix = "client:client"

// Sender delivers a command and its payload to a handler.
// *dispatcher.Dispatcher and *transport.Remote implement it.
type Sender interface {
	Dispatch(ctx context.Context, id command.ID, payload commsutil.Payload) *dispatcher.Response
	DispatchAndForget(ctx context.Context, id command.ID, payload commsutil.Payload)
}

// Client sends commands on behalf of one user.
type Client struct {
	sender    Sender
	userEmail string
}

// New creates a client acting as userEmail. An empty email makes anonymous calls.
func New(sender Sender, userEmail string) *Client {
	return &Client{sender: sender, userEmail: userEmail}
}

// UserEmail returns the identity the client acts as.
func (c *Client) UserEmail() string {
	return c.userEmail
}

// As returns a client sharing the same sender but acting as another user.
func (c *Client) As(userEmail string) *Client {
	return &Client{sender: c.sender, userEmail: userEmail}
}

// Dispatch sends a raw payload and returns the envelope.
func (c *Client) Dispatch(ctx context.Context, id command.ID, payload commsutil.Payload) *dispatcher.Response {
	return c.sender.Dispatch(c.withIdentity(ctx), id, payload)
}

// Send dispatches without waiting for the outcome.
func (c *Client) Send(ctx context.Context, id command.ID, req any) error {
	payload, err := encodeRequest(req)
	if err != nil {
		return err
	}
	c.sender.DispatchAndForget(c.withIdentity(ctx), id, payload)
	return nil
}

func (c *Client) withIdentity(ctx context.Context) context.Context {
	if inv := dispatcher.InvocationFrom(ctx); inv != nil {
		return ctx
	}
	return dispatcher.WithInvocation(ctx, &dispatcher.InvocationContext{
		UserEmail: c.userEmail,
		RequestID: uuid.NewString(),
	})
}

func encodeRequest(req any) (commsutil.Payload, error) {
	if req == nil {
		return nil, nil
	}
	return commsutil.EncodePayload(req)
}

// Call sends req and decodes the success payload as Resp.
func Call[Req, Resp any](ctx context.Context, c *Client, id command.ID, req Req) (Resp, error) {
	var zero Resp
	payload, err := commsutil.EncodePayload(req)
	if err != nil {
		return zero, err
	}
	return decodeResponse[Resp](id, c.Dispatch(ctx, id, payload))
}

// Query sends id without a request payload and decodes the response as Resp.
func Query[Resp any](ctx context.Context, c *Client, id command.ID) (Resp, error) {
	return decodeResponse[Resp](id, c.Dispatch(ctx, id, nil))
}

// Exec sends req to a command whose response carries no payload.
func Exec[Req any](ctx context.Context, c *Client, id command.ID, req Req) error {
	payload, err := commsutil.EncodePayload(req)
	if err != nil {
		return err
	}
	resp := c.Dispatch(ctx, id, payload)
	if err := resp.Err(); err != nil {
		slog.Debug(fmt.Sprintf("%s - %s failed: %v", logPrefix, id, err))
		return err
	}
	return nil
}

func decodeResponse[Resp any](id command.ID, resp *dispatcher.Response) (Resp, error) {
	var zero Resp
	if err := resp.Err(); err != nil {
		slog.Debug(fmt.Sprintf("%s - %s failed: %v", logPrefix, id, err))
		return zero, err
	}
	out, err := commsutil.Decode[Resp](resp.Payload)
	if err != nil {
		return zero, cmderr.New(cmderr.KindDecode, "response of %s: %s", id, cmderr.From(err).Message)
	}
	return out, nil
}

// MustCall is Call that panics with the *cmderr.Error on failure.
func MustCall[Req, Resp any](ctx context.Context, c *Client, id command.ID, req Req) Resp {
	out, err := Call[Req, Resp](ctx, c, id, req)
	if err != nil {
		panic(cmderr.From(err))
	}
	return out
}

// MustQuery is Query that panics with the *cmderr.Error on failure.
func MustQuery[Resp any](ctx context.Context, c *Client, id command.ID) Resp {
	out, err := Query[Resp](ctx, c, id)
	if err != nil {
		panic(cmderr.From(err))
	}
	return out
}

// MustExec is Exec that panics with the *cmderr.Error on failure.
func MustExec[Req any](ctx context.Context, c *Client, id command.ID, req Req) {
	if err := Exec(ctx, c, id, req); err != nil {
		panic(cmderr.From(err))
	}
}
