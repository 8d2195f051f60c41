package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
)

const remoteLogPrefix = "transport:remote"

// RemoteOpts configures a Remote.
type RemoteOpts struct {
	SubjectPrefix string
	// Timeout applies when the caller's context has no deadline.
	Timeout time.Duration
}

// Remote sends commands to a dispatcher served over COMMS.
type Remote struct {
	nc      *comms.Conn
	prefix  string
	timeout time.Duration
}

// NewRemote creates a sender publishing on nc.
func NewRemote(nc *comms.Conn, opts RemoteOpts) *Remote {
	r := &Remote{nc: nc, prefix: opts.SubjectPrefix, timeout: opts.Timeout}
	if r.timeout <= 0 {
		r.timeout = DefaultRequestTimeout
	}
	return r
}

// Dispatch sends the command and waits for the served envelope.
func (r *Remote) Dispatch(ctx context.Context, id command.ID, payload commsutil.Payload) *dispatcher.Response {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := r.request(ctx, payload)
	data, err := r.encode(id, req)
	if err != nil {
		return dispatcher.Failure(err)
	}

	msg, err := r.nc.RequestWithContext(ctx, commsutil.BuildCommandSubject(r.prefix, id), data)
	switch {
	case errors.Is(err, comms.ErrNoResponders):
		return dispatcher.Failure(cmderr.New(cmderr.KindUnknownCommand, "no handler serving %s", id))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, comms.ErrTimeout):
		return dispatcher.Failure(cmderr.New(cmderr.KindAbandoned, "caller stopped waiting for %s: %v", id, err))
	case err != nil:
		return dispatcher.Failure(fmt.Errorf("%s - request %s: %w", remoteLogPrefix, id, err))
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return dispatcher.Failure(cmderr.New(cmderr.KindDecode, "malformed reply to %s: %v", id, err))
	}
	if reply.ID != "" && reply.ID != req.ID {
		return dispatcher.Failure(cmderr.New(cmderr.KindDecode, "reply to %s carries id %s, want %s", id, reply.ID, req.ID))
	}
	return reply.Response()
}

// DispatchAndForget publishes the command without a reply subject.
func (r *Remote) DispatchAndForget(ctx context.Context, id command.ID, payload commsutil.Payload) {
	data, err := r.encode(id, r.request(ctx, payload))
	if err == nil {
		err = r.nc.Publish(commsutil.BuildCommandSubject(r.prefix, id), data)
	}
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - fire-and-forget %s failed: %v", remoteLogPrefix, id, err))
	}
}

// request builds the wire request. The id reuses the caller's request id when there is one.
func (r *Remote) request(ctx context.Context, payload commsutil.Payload) *Request {
	req := &Request{ID: uuid.NewString(), Ctx: dispatcher.InvocationFrom(ctx), Payload: payload}
	if req.Ctx != nil && req.Ctx.RequestID != "" {
		req.ID = req.Ctx.RequestID
	}
	if deadline, ok := ctx.Deadline(); ok {
		// Zero means no budget on the serving side, so a deadline under a
		// millisecond away still sends 1.
		req.TimeoutMs = max(time.Until(deadline).Milliseconds(), 1)
	}
	return req
}

func (r *Remote) encode(id command.ID, req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, cmderr.New(cmderr.KindDecode, "encode request for %s: %v", id, err)
	}
	return data, nil
}
