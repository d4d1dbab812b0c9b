package peer

import (
	"context"
	"errors"
	"time"

	"github.com/hearo-audio/hearo-core/internal/ipc"
)

// Handler is the daemon-specific half of the main loop. HandleMessage
// receives every well-formed envelope addressed to the daemon's
// endpoint; Tick runs on a fixed period, traffic or no traffic, and is
// the daemon's heartbeat for polling hardware, retrying failed work
// and emitting heartbeat events.
//
// Both callbacks run on the loop goroutine, so handlers need no
// internal locking.
type Handler interface {
	HandleMessage(env *ipc.Envelope, now time.Time)
	Tick(now time.Time)
}

// Loop drives one daemon: receive a message or time out, hand either
// outcome to the handler, repeat until the context is cancelled.
type Loop struct {
	name    string
	ep      *ipc.Endpoint
	handler Handler
	log     ipc.Logger
}

// NewLoop assembles a daemon loop. log may be nil.
func NewLoop(name string, ep *ipc.Endpoint, handler Handler, log ipc.Logger) *Loop {
	return &Loop{name: name, ep: ep, handler: handler, log: log}
}

// Run executes the loop until ctx is cancelled or the endpoint is
// closed. The tick deadline is tracked separately from the receive,
// so a busy bus cannot push the tick out: whatever the last receive
// produced, Tick still fires once its period has elapsed. Transport
// errors other than the bounded-wait timeout are logged and the loop
// continues after a short pause; a daemon never dies because one read
// failed.
func (l *Loop) Run(ctx context.Context) error {
	period := l.ep.ReceiveWait()
	nextTick := time.Now().Add(period)
	for {
		env, err := l.ep.Receive(ctx)
		switch {
		case err == nil:
			l.handler.HandleMessage(env, time.Now())
		case errors.Is(err, ipc.ErrTimeout):
			// Idle interval; the deadline check below ticks.
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ipc.ErrClosed):
			return err
		default:
			if l.log != nil {
				l.log.Error("receive failed", "daemon", l.name, "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		if now := time.Now(); !now.Before(nextTick) {
			l.handler.Tick(now)
			nextTick = now.Add(period)
		}
	}
}
