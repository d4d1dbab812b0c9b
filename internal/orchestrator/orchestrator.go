package orchestrator

import (
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
)

// State is the global system state derived from the event stream.
type State int

const (
	StateInit State = iota
	StateNoWiFi
	StateOffline
	StateReadyPaused
	StatePlaying
	StateShutdown
	StateError
)

// String returns the wire name carried by HCSM_EVENT_STATE_CHANGED.
func (s State) String() string {
	switch s {
	case StateNoWiFi:
		return "SYS_NO_WIFI"
	case StateOffline:
		return "SYS_OFFLINE"
	case StateReadyPaused:
		return "SYS_READY_PAUSED"
	case StatePlaying:
		return "SYS_PLAYING"
	case StateShutdown:
		return "SYS_SHUTDOWN"
	case StateError:
		return "SYS_ERROR"
	default:
		return "SYS_INIT"
	}
}

// requiredStarted maps each required daemon's started event to its
// identity. All six must be seen before the fleet counts as up.
var requiredStarted = map[string]string{
	ipc.EventButtonsStarted: ipc.OriginButtons,
	ipc.EventNFCStarted:     ipc.OriginNFC,
	ipc.EventWiFiStarted:    ipc.OriginWiFi,
	ipc.EventPlayerStarted:  ipc.OriginPlayer,
	ipc.EventPowerStarted:   ipc.OriginPower,
	ipc.EventLEDStarted:     ipc.OriginLED,
}

// requiredStopped maps stopped events back to the same identities.
var requiredStopped = map[string]string{
	ipc.EventButtonsStopped: ipc.OriginButtons,
	ipc.EventNFCStopped:     ipc.OriginNFC,
	ipc.EventWiFiStopped:    ipc.OriginWiFi,
	ipc.EventPlayerStopped:  ipc.OriginPlayer,
	ipc.EventPowerStopped:   ipc.OriginPower,
	ipc.EventLEDStopped:     ipc.OriginLED,
}

// statusPokeInterval spaces repeat WSM_COMMAND_STATUS pokes while the
// orchestrator waits in SYS_INIT for a network-status event.
const statusPokeInterval = 10 * time.Second

// defaultSeekDeltaMS is the seek step for long/held NEXT and PREV.
const defaultSeekDeltaMS = 15000

// Options wires the orchestrator to its peers.
type Options struct {
	// PlayerSocket and WiFiSocket are the peer command endpoints.
	PlayerSocket string
	WiFiSocket   string

	// Mirrors receive a fire-and-forget copy of every event the
	// orchestrator receives (ledd, and the bridge when enabled).
	Mirrors []string

	// SeekDeltaMS overrides the seek step when > 0.
	SeekDeltaMS int
}

// Daemon is the central orchestrator (hcsm). It owns the shared events
// endpoint, folds the event stream into the global state, and issues
// commands to peers without ever waiting for their replies. Implements
// peer.Handler.
type Daemon struct {
	opts Options
	pub  *ipc.Publisher
	log  *logging.Logger

	state          State
	started        map[string]bool
	wifiStatusSeen bool
	initiated      bool
	currentTag     string

	lastStatusPoke time.Time
}

// New assembles the orchestrator in its initial state.
func New(opts Options, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	if opts.SeekDeltaMS <= 0 {
		opts.SeekDeltaMS = defaultSeekDeltaMS
	}
	return &Daemon{
		opts:    opts,
		pub:     pub,
		log:     log,
		started: make(map[string]bool),
	}
}

// State returns the current global state. Exposed for tests.
func (d *Daemon) State() State {
	return d.state
}

// Start pokes the Wi-Fi daemon for status so a network event arrives
// even when the link state is not changing.
func (d *Daemon) Start(now time.Time) {
	d.log.Info("orchestrator started", "state", d.state.String())
	d.sendCmd(d.opts.WiFiSocket, ipc.CmdWiFiStatus, nil)
	d.lastStatusPoke = now
}

// Stop announces shutdown if the orchestrator has not already entered
// it through the event fold.
func (d *Daemon) Stop(reason string) {
	if d.state != StateShutdown {
		d.transition(StateShutdown)
	}
	d.log.Info("orchestrator stopped", "reason", reason)
}

// HandleMessage folds one inbound event into the global state. Every
// received event is first mirrored to the configured endpoints;
// non-event schemas and events irrelevant to the current state are
// ignored, never buffered.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	for _, m := range d.opts.Mirrors {
		if err := ipc.Send(m, env); err != nil {
			d.log.Debug("mirror delivery failed", "endpoint", m, "error", err)
		}
	}

	if env.Schema != ipc.SchemaEvent {
		return
	}

	d.trackFleet(env.Event)

	switch d.state {
	case StateInit:
		d.inInit(env)
	case StateNoWiFi:
		d.inNoWiFi(env)
	case StateOffline:
		d.inOffline(env)
	case StateReadyPaused:
		d.inReadyPaused(env)
	case StatePlaying:
		d.inPlaying(env)
	case StateShutdown:
		// Terminal: everything is ignored.
	case StateError:
		d.inError(env)
	}
}

// Tick re-pokes the Wi-Fi daemon while initialization waits on a
// network-status event.
func (d *Daemon) Tick(now time.Time) {
	if d.state != StateInit || d.wifiStatusSeen {
		return
	}
	if now.Sub(d.lastStatusPoke) >= statusPokeInterval {
		d.sendCmd(d.opts.WiFiSocket, ipc.CmdWiFiStatus, nil)
		d.lastStatusPoke = now
	}
}

// trackFleet maintains the set of peers seen as started and the
// network-status flag, independent of the current state. A required
// peer stopping outside shutdown faults the system.
func (d *Daemon) trackFleet(event string) {
	if name, ok := requiredStarted[event]; ok && !d.started[name] {
		d.started[name] = true
		d.log.Info("peer started", "daemon", name)
	}
	if name, ok := requiredStopped[event]; ok && d.started[name] {
		delete(d.started, name)
		if d.state != StateShutdown && d.state != StateInit {
			d.log.Warn("peer stopped unexpectedly", "daemon", name)
			d.transition(StateError)
		}
	}
	if event == ipc.EventWiFiConnected || event == ipc.EventWiFiLost {
		d.wifiStatusSeen = true
	}
}

// allStarted reports whether every required peer has announced itself.
func (d *Daemon) allStarted() bool {
	for _, name := range requiredStarted {
		if !d.started[name] {
			return false
		}
	}
	return true
}

// inInit leaves SYS_INIT once all peers are up and one network-status
// event has been observed. The initiated event fires exactly once per
// process lifetime, even if the condition is satisfied again later.
func (d *Daemon) inInit(env *ipc.Envelope) {
	if !d.allStarted() || !d.wifiStatusSeen {
		return
	}
	d.transition(StateNoWiFi)
	if !d.initiated {
		d.initiated = true
		d.pub.Emit(ipc.EventInitiated, nil)
	}
	// The fold replays the triggering event against the new state so a
	// WIFI_CONNECTED that completed initialization also advances it.
	if env.Event == ipc.EventWiFiConnected {
		d.inNoWiFi(env)
	}
}

func (d *Daemon) inNoWiFi(env *ipc.Envelope) {
	switch env.Event {
	case ipc.EventWiFiConnected:
		d.transition(StateOffline)
	case ipc.EventBatteryCritical:
		d.shutdown()
	}
}

func (d *Daemon) inOffline(env *ipc.Envelope) {
	switch env.Event {
	case ipc.EventAuthenticated:
		d.transition(StateReadyPaused)
	case ipc.EventWiFiLost:
		d.transition(StateNoWiFi)
	case ipc.EventBatteryCritical:
		d.shutdown()
	}
}

func (d *Daemon) inReadyPaused(env *ipc.Envelope) {
	switch env.Event {
	case ipc.EventTagAdded:
		d.playTag(env.Payload.String("uid"))
	case ipc.EventTagResolved:
		d.transition(StatePlaying)
	case ipc.EventWiFiLost:
		d.transition(StateNoWiFi)
	case ipc.EventAuthLost, ipc.EventAuthFailed, ipc.EventDisconnected:
		d.transition(StateOffline)
	case ipc.EventBatteryCritical:
		d.shutdown()
	}
}

func (d *Daemon) inPlaying(env *ipc.Envelope) {
	switch env.Event {
	case ipc.EventTagAdded:
		d.playTag(env.Payload.String("uid"))
	case ipc.EventPlayStopped:
		d.transition(StateReadyPaused)
	case ipc.EventTagRemoved:
		d.stopPlayback()
		d.currentTag = ""
		d.transition(StateReadyPaused)
	case ipc.EventButton:
		d.buttonWhilePlaying(env.Payload)
	case ipc.EventWiFiLost:
		d.stopPlayback()
		d.transition(StateNoWiFi)
	case ipc.EventAuthLost, ipc.EventAuthFailed, ipc.EventDisconnected:
		d.transition(StateOffline)
	case ipc.EventBatteryCritical:
		d.shutdown()
	}
}

// inError waits for the fleet to come back, then restarts the fold
// from SYS_INIT. The initiated event is not re-emitted.
func (d *Daemon) inError(env *ipc.Envelope) {
	if d.allStarted() {
		d.transition(StateInit)
	}
}

// buttonWhilePlaying maps transport buttons to player commands: short
// presses skip, long presses and hold ticks seek.
func (d *Daemon) buttonWhilePlaying(p ipc.Payload) {
	button := p.String("button")
	interaction := p.String("interaction")
	if button != "NEXT" && button != "PREV" {
		return
	}
	switch interaction {
	case "SHORT_PRESS":
		cmd := ipc.CmdNext
		if button == "PREV" {
			cmd = ipc.CmdPrevious
		}
		d.sendCmd(d.opts.PlayerSocket, cmd, nil)
	case "LONG_PRESS", "HOLD_TICK":
		delta := d.opts.SeekDeltaMS
		if button == "PREV" {
			delta = -delta
		}
		d.sendCmd(d.opts.PlayerSocket, ipc.CmdSeek, ipc.Payload{"delta_ms": delta})
	}
}

func (d *Daemon) playTag(uid string) {
	if uid == "" {
		return
	}
	d.currentTag = uid
	d.sendCmd(d.opts.PlayerSocket, ipc.CmdPlayTag, ipc.Payload{"uid": uid})
}

func (d *Daemon) stopPlayback() {
	d.sendCmd(d.opts.PlayerSocket, ipc.CmdStop, nil)
}

func (d *Daemon) shutdown() {
	d.stopPlayback()
	d.transition(StateShutdown)
}

// sendCmd fires a command at a peer without a reply endpoint. The
// orchestrator never waits for acks; a lost command surfaces, if at
// all, as the absence of the follow-up event.
func (d *Daemon) sendCmd(path, cmd string, payload ipc.Payload) {
	env := ipc.NewCommand(ipc.OriginOrchestrator, cmd, payload, "", time.Second)
	if err := ipc.Send(path, env); err != nil {
		d.log.Warn("command delivery failed", "cmd", cmd, "endpoint", path, "error", err)
	}
}

func (d *Daemon) transition(next State) {
	if next == d.state {
		return
	}
	old := d.state
	d.state = next
	d.log.Info("state transition", "from", old.String(), "to", next.String())
	d.pub.Emit(ipc.EventStateChanged, ipc.Payload{"old": old.String(), "new": next.String()})
	if next == StateShutdown {
		d.pub.Emit(ipc.EventShutdown, nil)
	}
}
