// Package commsutil provides the payload codec, COMMS connection helpers and subject naming.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// ConnectOpts tunes the COMMS connection. Zero values use defaults.
type ConnectOpts struct {
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

func (o ConnectOpts) withDefaults() ConnectOpts {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = 60
	}
	return o
}

// Connect opens a COMMS connection named after the service.
func Connect(url, name string) (*comms.Conn, error) {
	return ConnectWithOpts(url, name, ConnectOpts{})
}

// ConnectWithOpts opens a COMMS connection with explicit options.
func ConnectWithOpts(url, name string, opts ConnectOpts) (*comms.Conn, error) {
	opts = opts.withDefaults()
	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(opts.Timeout),
		comms.ReconnectWait(opts.ReconnectWait),
		comms.MaxReconnects(opts.MaxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - COMMS disconnected: %v", logPrefix, err))
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
