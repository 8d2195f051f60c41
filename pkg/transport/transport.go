// Package transport exposes a dispatcher on COMMS subjects and provides the
// matching remote sender. Each command is served on <prefix>.<domain>.<name>.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
)

const logPrefix = "transport:transport"

// DefaultRequestTimeout bounds how long a served request may wait for its envelope.
const DefaultRequestTimeout = 30 * time.Second

// DefaultMaxInFlight bounds the requests a bridge serves concurrently.
const DefaultMaxInFlight = 256

// Request is the wire form of a command sent over COMMS.
type Request struct {
	ID        string                        `json:"id"`
	Ctx       *dispatcher.InvocationContext `json:"ctx,omitempty"`
	Payload   commsutil.Payload             `json:"payload,omitempty"`
	TimeoutMs int64                         `json:"timeoutMs,omitempty"`
}

// Reply is the wire form of a served envelope. ID echoes the request.
type Reply struct {
	ID      string            `json:"id"`
	Ok      bool              `json:"ok"`
	Payload commsutil.Payload `json:"payload,omitempty"`
	Error   *cmderr.Error     `json:"error,omitempty"`
}

func newReply(id string, resp *dispatcher.Response) *Reply {
	return &Reply{ID: id, Ok: resp.Ok, Payload: resp.Payload, Error: resp.Error}
}

// Response converts the reply back into a dispatcher envelope.
func (r *Reply) Response() *dispatcher.Response {
	return &dispatcher.Response{Ok: r.Ok, Payload: r.Payload, Error: r.Error}
}

// ServeOpts configures Serve.
type ServeOpts struct {
	SubjectPrefix  string
	Queue          string
	RequestTimeout time.Duration
	// MaxInFlight caps concurrently served requests. Once reached, delivery
	// on the subscription waits for a slot.
	MaxInFlight int
}

// Bridge is a running subscription feeding a dispatcher.
type Bridge struct {
	sub      *comms.Subscription
	subject  string
	inflight *errgroup.Group
}

// Serve subscribes to every command subject under opts.SubjectPrefix and
// dispatches incoming requests. Requests without a reply subject are
// dispatched fire-and-forget.
func Serve(ctx context.Context, nc *comms.Conn, disp *dispatcher.Dispatcher, opts ServeOpts) (*Bridge, error) {
	prefix := opts.SubjectPrefix
	if prefix == "" {
		prefix = commsutil.SubjectCommandPrefix
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limit := opts.MaxInFlight
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}
	inflight := new(errgroup.Group)
	inflight.SetLimit(limit)

	handle := func(msg *comms.Msg) {
		id, err := commsutil.ParseCommandSubject(prefix, msg.Subject)
		if err != nil {
			respond(msg, newReply("", dispatcher.Failure(cmderr.New(cmderr.KindUnknownCommand, "%v", err))))
			return
		}

		var req Request
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				slog.Error(fmt.Sprintf("%s - failed to decode request on %s: %v", logPrefix, msg.Subject, err))
				respond(msg, newReply("", dispatcher.Failure(cmderr.New(cmderr.KindDecode, "malformed request: %v", err))))
				return
			}
		}
		reqCtx := dispatcher.WithInvocation(ctx, req.Ctx)

		if msg.Reply == "" {
			disp.DispatchAndForget(reqCtx, id, req.Payload)
			return
		}

		// The caller's own budget applies when it is tighter than ours. The
		// budget starts on delivery, before the request waits for a slot.
		d := timeout
		if req.TimeoutMs > 0 && time.Duration(req.TimeoutMs)*time.Millisecond < d {
			d = time.Duration(req.TimeoutMs) * time.Millisecond
		}
		reqCtx, cancel := context.WithTimeout(reqCtx, d)

		// COMMS delivers one subscription's messages serially, so each
		// request is dispatched on its own goroutine.
		inflight.Go(func() error {
			defer cancel()
			respond(msg, newReply(req.ID, disp.Dispatch(reqCtx, id, req.Payload)))
			return nil
		})
	}

	subject := prefix + ".>"
	var sub *comms.Subscription
	var err error
	if opts.Queue != "" {
		sub, err = nc.QueueSubscribe(subject, opts.Queue, handle)
	} else {
		sub, err = nc.Subscribe(subject, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}

	slog.Info(fmt.Sprintf("%s - Serving commands on %s", logPrefix, subject))
	return &Bridge{sub: sub, subject: subject, inflight: inflight}, nil
}

// Subject returns the wildcard subject the bridge listens on.
func (b *Bridge) Subject() string {
	return b.subject
}

// Close stops receiving new requests and waits for the replies of requests
// already delivered. Each of those is bounded by its request timeout.
func (b *Bridge) Close() error {
	err := b.sub.Unsubscribe()
	b.inflight.Wait()
	if err != nil {
		return fmt.Errorf("%s - unsubscribe %s: %w", logPrefix, b.subject, err)
	}
	return nil
}

func respond(msg *comms.Msg, reply *Reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", logPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond on %s: %v", logPrefix, msg.Reply, err))
	}
}
