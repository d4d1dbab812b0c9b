package buttons

import (
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/debounce"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

const version = "1.0"

// LineReader reads the current level of a named button line.
// Implementations wrap the GPIO character device; tests substitute a
// scripted fake.
type LineReader interface {
	// ReadLevel returns true while the named line is pressed.
	ReadLevel(name string) (bool, error)
}

// button is one configured input and its classifier.
type button struct {
	name       string
	fsm        *debounce.FSM
	recovering bool
}

// Daemon is the button daemon. It implements peer.Handler and is
// driven by a peer.Loop.
type Daemon struct {
	cfg     config.ButtonsConfig
	reader  LineReader
	pub     *ipc.Publisher
	log     *logging.Logger
	buttons []*button

	started       time.Time
	status        string
	lastButton    ipc.Payload
	lastErrorCode string
}

// New assembles the daemon from its configuration. Each configured
// input gets its own debounce FSM; an input with a per-button long
// threshold override (the reset button) keeps everything else from
// the shared timing.
func New(cfg config.ButtonsConfig, reader LineReader, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	d := &Daemon{
		cfg:    cfg,
		reader: reader,
		pub:    pub,
		log:    log,
		status: "init",
	}
	for _, in := range cfg.Inputs {
		fsmCfg := debounce.Config{
			Debounce:      cfg.Debounce(),
			ShortMin:      cfg.ShortMin(),
			LongThreshold: cfg.LongThreshold(),
			HoldTick:      cfg.HoldTickInterval(),
		}
		if in.LongThresholdMS > 0 {
			fsmCfg.LongThreshold = time.Duration(in.LongThresholdMS) * time.Millisecond
		}
		d.buttons = append(d.buttons, &button{name: in.Name, fsm: debounce.NewFSM(fsmCfg)})
	}
	return d
}

// Start announces the daemon on the bus.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.status = "ready"
	d.pub.Emit(ipc.EventButtonsStarted, ipc.Payload{"version": version, "pid": os.Getpid()})
	d.log.Info("button daemon started", "inputs", len(d.buttons))
}

// Stop announces the daemon leaving the bus.
func (d *Daemon) Stop(reason string) {
	d.pub.Emit(ipc.EventButtonsStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("button daemon stopped", "reason", reason)
}

// HandleMessage answers the bd command set. Anything that is not a
// command is ignored; unknown commands get a not-ok ack.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema != ipc.SchemaCmd {
		return
	}
	switch {
	case env.Cmd == ipc.CmdButtonsPing:
		peer.Accept(ipc.OriginButtons, env)
		peer.Finish(ipc.OriginButtons, env, ipc.Payload{
			"status":      d.status,
			"last_button": d.lastButton,
			"uptime_ms":   now.Sub(d.started).Milliseconds(),
		})
	case peer.HandleCommon(ipc.OriginButtons, env, d.log):
	default:
		peer.Reject(ipc.OriginButtons, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
	}
}

// Tick polls every line once and publishes the interactions the
// samples complete.
//
// A line read failure is treated as released so a press can never
// stick across a hardware fault; the fault itself surfaces as one
// BD_EVENT_ERROR per episode, with recovering=true since the next
// tick retries automatically.
func (d *Daemon) Tick(now time.Time) {
	for _, b := range d.buttons {
		level, err := d.reader.ReadLevel(b.name)
		if err != nil {
			b.fsm.ForceRelease()
			if !b.recovering {
				b.recovering = true
				d.reportError("GPIO_READ_FAILED", b.name+": "+err.Error(), true)
			}
			continue
		}
		if b.recovering {
			b.recovering = false
			d.status = "ready"
			d.log.Info("line read recovered", "button", b.name)
		}

		for _, in := range b.fsm.Update(level, now) {
			payload := ipc.Payload{
				"button":      b.name,
				"interaction": in.Kind.String(),
				"duration_ms": in.Duration.Milliseconds(),
				"sequence":    in.Sequence,
			}
			d.pub.Emit(ipc.EventButton, payload)
			d.lastButton = payload
			d.log.Info("button interaction",
				"button", b.name,
				"interaction", in.Kind.String(),
				"duration_ms", in.Duration.Milliseconds(),
				"sequence", in.Sequence)
		}
	}
}

func (d *Daemon) reportError(code, message string, recovering bool) {
	d.status = "error"
	d.lastErrorCode = code
	d.pub.Emit(ipc.EventButtonsError, ipc.Payload{
		"code":       code,
		"message":    message,
		"recovering": recovering,
	})
	d.log.Error("button daemon error", "code", code, "message", message, "recovering", recovering)
}
