package nfc

import (
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/debounce"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// Reader performs one tag read cycle. ReadUID returns the uid as
// uppercase hex without separators, or "" when no tag is in the field.
// Implementations wrap the PN532; tests substitute a scripted fake.
type Reader interface {
	// Init (re-)initialises the reader hardware.
	Init() error
	// ReadUID performs one bounded read attempt.
	ReadUID() (string, error)
}

// daemon states.
type state int

const (
	stateInit state = iota
	stateReady
	stateError
)

func (s state) String() string {
	switch s {
	case stateReady:
		return "READY"
	case stateError:
		return "ERROR"
	default:
		return "INIT"
	}
}

// Daemon is the NFC daemon. It implements peer.Handler and is driven
// by a peer.Loop.
type Daemon struct {
	cfg      config.NFCConfig
	reader   Reader
	pub      *ipc.Publisher
	log      *logging.Logger
	presence *debounce.Presence
	backoff  *peer.Backoff

	state         state
	started       time.Time
	lastHeartbeat time.Time
	nextRetry     time.Time
	restartAsked  bool
	lastErrorCode string
}

// New assembles the daemon from its configuration.
func New(cfg config.NFCConfig, reader Reader, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	return &Daemon{
		cfg:      cfg,
		reader:   reader,
		pub:      pub,
		log:      log,
		presence: debounce.NewPresence(cfg.Debounce(), cfg.MissRelease()),
		backoff:  peer.NewBackoff(time.Second, 30*time.Second),
	}
}

// Start announces the daemon and initialises the reader. An init
// failure is not fatal: the daemon enters its error state and retries
// from the tick with backoff.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.pub.Emit(ipc.EventNFCStarted, ipc.Payload{"version": 1, "pid": os.Getpid()})

	if err := d.reader.Init(); err != nil {
		d.enterError(now, "READER_INIT_FAILED", err.Error())
		return
	}
	d.enterReady()
}

// Stop announces the daemon leaving the bus.
func (d *Daemon) Stop(reason string) {
	d.pub.Emit(ipc.EventNFCStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("nfc daemon stopped", "reason", reason)
}

// HandleMessage answers the nfcd command set.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema != ipc.SchemaCmd {
		return
	}
	switch {
	case env.Cmd == ipc.CmdNFCPing:
		peer.Accept(ipc.OriginNFC, env)
		peer.Finish(ipc.OriginNFC, env, ipc.Payload{
			"state":                   d.state.String(),
			"current_uid":             d.currentOrNil(),
			"uptime_ms":               now.Sub(d.started).Milliseconds(),
			"debounce_ms":             d.cfg.DebounceMS,
			"miss_release_ms":         d.cfg.MissReleaseMS,
			"tag_heartbeat_period_ms": d.cfg.TagHeartbeatPeriodMS,
		})
	case env.Cmd == ipc.CmdNFCRestart:
		peer.Accept(ipc.OriginNFC, env)
		d.restartAsked = true
		peer.Finish(ipc.OriginNFC, env, ipc.Payload{"restart": "scheduled"})
	case peer.HandleCommon(ipc.OriginNFC, env, d.log):
	default:
		peer.Reject(ipc.OriginNFC, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
	}
}

// Tick runs one poll cycle: in READY it reads the field and advances
// presence; in ERROR it retries reader init on the backoff schedule.
func (d *Daemon) Tick(now time.Time) {
	if d.restartAsked {
		d.restartAsked = false
		d.log.Info("reader restart requested")
		d.reinit(now)
		return
	}

	switch d.state {
	case stateReady:
		d.poll(now)
	case stateError:
		if !now.Before(d.nextRetry) {
			d.reinit(now)
		}
	}
}

func (d *Daemon) poll(now time.Time) {
	uid, err := d.reader.ReadUID()
	if err != nil {
		d.enterError(now, "I2C_TIMEOUT", "read failed: "+err.Error())
		return
	}

	for _, edge := range d.presence.Observe(uid, now) {
		switch edge.Kind {
		case debounce.Added:
			d.pub.Emit(ipc.EventTagAdded, ipc.Payload{"uid": edge.UID, "tech": "ISO14443", "ats": nil})
			d.lastHeartbeat = now
			d.log.Info("tag added", "uid", edge.UID)
		case debounce.Removed:
			d.pub.Emit(ipc.EventTagRemoved, ipc.Payload{"uid": edge.UID, "reason": edge.Reason})
			d.log.Info("tag removed", "uid", edge.UID, "reason", edge.Reason)
		}
	}

	if cur := d.presence.Current(); cur != "" && now.Sub(d.lastHeartbeat) >= d.cfg.TagHeartbeatPeriod() {
		d.lastHeartbeat = now
		d.pub.Emit(ipc.EventTagPresent, ipc.Payload{"uid": cur})
	}
}

// reinit attempts to bring the reader back. Presence is cleared so a
// tag that sat on the reader across the fault is re-announced.
func (d *Daemon) reinit(now time.Time) {
	if err := d.reader.Init(); err != nil {
		d.enterError(now, "READER_INIT_FAILED", err.Error())
		return
	}
	d.presence.Reset()
	d.backoff.Reset()
	d.enterReady()
}

func (d *Daemon) enterReady() {
	d.state = stateReady
	d.pub.Emit(ipc.EventNFCReady, ipc.Payload{})
	d.log.Info("nfc reader ready")
}

func (d *Daemon) enterError(now time.Time, code, message string) {
	d.state = stateError
	d.lastErrorCode = code
	d.nextRetry = now.Add(d.backoff.Next())
	d.pub.Emit(ipc.EventNFCError, ipc.Payload{
		"code":       code,
		"message":    message,
		"recovering": true,
	})
	d.log.Error("nfc daemon error", "code", code, "message", message)
}

func (d *Daemon) currentOrNil() any {
	if cur := d.presence.Current(); cur != "" {
		return cur
	}
	return nil
}
