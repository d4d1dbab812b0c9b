package ipc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Send serialises env and fires it at the datagram socket at path.
//
// Sending is strictly fire-and-forget: a missing or unresponsive
// receiver is an expected fleet condition, never an error the caller
// must handle. The returned error exists only so callers that want a
// diagnostic can log it.
func Send(path string, env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("sending to %s: %w", path, err)
	}
	return nil
}

// Publisher emits events from one daemon to the shared event endpoint.
// Delivery is fire-and-forget; a dead orchestrator only costs events,
// never blocks the emitting daemon.
type Publisher struct {
	origin    string
	eventPath string
	log       Logger
}

// NewPublisher builds a Publisher for the daemon named origin that
// targets the event endpoint at eventPath.
func NewPublisher(origin, eventPath string, log Logger) *Publisher {
	if log == nil {
		log = noopLogger{}
	}
	return &Publisher{origin: origin, eventPath: eventPath, log: log}
}

// Emit builds an event envelope and sends it to the event endpoint.
// Transport failures are logged and swallowed.
func (p *Publisher) Emit(event string, payload Payload) {
	env := NewEvent(p.origin, event, payload)
	if err := Send(p.eventPath, env); err != nil {
		p.log.Warn("event delivery failed",
			"event", event,
			"endpoint", p.eventPath,
			"error", err)
		return
	}
	p.log.Debug("event emitted", "event", event, "id", env.ID)
}

// Reply sends an ack or result back to the endpoint named by cmd's
// reply field. Commands without a reply endpoint must not be answered;
// Reply enforces that by returning ErrNoReply.
func Reply(cmd, response *Envelope) error {
	if cmd.Reply == "" {
		return ErrNoReply
	}
	return Send(cmd.Reply, response)
}

// Client sends commands from one daemon to another and collects the
// ack/result conversation on the caller's own endpoint.
type Client struct {
	origin string
	ep     *Endpoint
	log    Logger
}

// NewClient builds a command client that replies arrive on ep.
func NewClient(origin string, ep *Endpoint, log Logger) *Client {
	if log == nil {
		log = noopLogger{}
	}
	return &Client{origin: origin, ep: ep, log: log}
}

// Notify sends a command with no reply endpoint. The receiver executes
// it without answering.
func (c *Client) Notify(target, cmd string, payload Payload) {
	env := NewCommand(c.origin, cmd, payload, "", 0)
	if err := Send(target, env); err != nil {
		c.log.Warn("command delivery failed",
			"cmd", cmd,
			"endpoint", target,
			"error", err)
	}
}

// Send dispatches a command carrying the client's endpoint as the
// reply address and returns the sent envelope so the caller can
// correlate the ack and result as they arrive on the endpoint.
func (c *Client) Send(target, cmd string, payload Payload, timeout time.Duration) (*Envelope, error) {
	env := NewCommand(c.origin, cmd, payload, c.ep.Path(), timeout)
	if err := Send(target, env); err != nil {
		return nil, err
	}
	return env, nil
}

// AwaitReply receives from the client's endpoint until an ack or
// result correlating to cmd arrives, or the deadline passes. Envelopes
// that do not correlate are handed to stray, which may be nil.
//
// A failed ack terminates the conversation: the receiver will not send
// a result, so AwaitReply returns the ack itself.
func (c *Client) AwaitReply(ctx context.Context, cmd *Envelope, deadline time.Time, stray func(*Envelope)) (*Envelope, error) {
	for time.Now().Before(deadline) {
		env, err := c.ep.Receive(ctx)
		if err != nil {
			if err == ErrTimeout {
				continue
			}
			return nil, err
		}
		if env.Corr != cmd.ID {
			if stray != nil {
				stray(env)
			}
			continue
		}
		if env.Schema == SchemaResult {
			return env, nil
		}
		if env.Schema == SchemaAck && !env.IsOK() {
			return env, nil
		}
		// Positive ack: the result is still coming.
	}
	return nil, ErrTimeout
}
