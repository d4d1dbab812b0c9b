package player

import (
	"errors"
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// State is the plsm state machine state.
type State int

const (
	StateInit State = iota
	StateAuthenticating
	StateReady
	StatePlaying
	StateError
)

// String returns the wire name carried by PLSM_EVENT_STATE_CHANGED.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "PL_AUTHENTICATING"
	case StateReady:
		return "PL_READY"
	case StatePlaying:
		return "PL_PLAYING"
	case StateError:
		return "PL_ERROR"
	default:
		return "PL_INIT"
	}
}

// authState tracks the session credential health orthogonally to the
// playback state.
type authState int

const (
	authNone authState = iota
	authPending
	authOK
	authFailed
	authLost
)

// Daemon is the player state manager. It implements peer.Handler and
// is driven by a peer.Loop.
type Daemon struct {
	cfg     config.PlayerConfig
	store   *TagStore
	backend Backend
	pub     *ipc.Publisher
	log     *logging.Logger

	state   State
	auth    authState
	started time.Time

	currentUID   string
	currentTrack string
	lastSave     time.Time

	backoff *peer.Backoff
	retryAt time.Time

	shutdownAsked bool
}

// New assembles the daemon from its collaborators.
func New(cfg config.PlayerConfig, store *TagStore, backend Backend, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		store:   store,
		backend: backend,
		pub:     pub,
		log:     log,
		backoff: peer.NewBackoff(0, 0),
	}
}

// State returns the current machine state. Exposed for tests.
func (d *Daemon) State() State {
	return d.state
}

// ShutdownRequested reports whether PLSM_COMMAND_SHUTDOWN arrived.
func (d *Daemon) ShutdownRequested() bool {
	return d.shutdownAsked
}

// Start announces the daemon and runs startup authentication.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.pub.Emit(ipc.EventPlayerStarted, ipc.Payload{"version": 1, "pid": os.Getpid()})
	d.authenticate(now)
}

// Stop persists progress for an active session and announces the
// daemon leaving the bus.
func (d *Daemon) Stop(reason string) {
	if d.state == StatePlaying {
		d.persistProgress(time.Now())
	}
	d.pub.Emit(ipc.EventPlayerStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("player state manager stopped", "reason", reason)
}

// authenticate brings the backend to ready: credentials valid and the
// Connect device discovered.
func (d *Daemon) authenticate(now time.Time) {
	d.transition(StateAuthenticating)
	d.auth = authPending

	if err := d.backend.EnsureReady(); err != nil {
		d.log.Error("backend not ready", "error", err)
		d.backendFault("startup", err)
		d.transition(StateError)
		d.retryAt = now.Add(d.backoff.Next())
		return
	}

	d.auth = authOK
	d.backoff.Reset()
	d.pub.Emit(ipc.EventAuthenticated, nil)
	d.transition(StateReady)
}

// HandleMessage answers the plsm command set.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema != ipc.SchemaCmd {
		return
	}

	switch env.Cmd {
	case ipc.CmdPlayTag:
		d.cmdPlayTag(env, now)
	case ipc.CmdPlay:
		d.cmdPlay(env, now)
	case ipc.CmdStop:
		if d.state == StatePlaying {
			d.stopPlayback(now)
		}
		peer.Accept(ipc.OriginPlayer, env)
	case ipc.CmdNext:
		d.cmdSkip(env, "next", d.backend.Next)
	case ipc.CmdPrevious:
		d.cmdSkip(env, "previous", d.backend.Previous)
	case ipc.CmdSeek:
		d.cmdSeek(env)
	case ipc.CmdPlayerShutdown:
		if d.state == StatePlaying {
			d.persistProgress(now)
		}
		d.shutdownAsked = true
		peer.Accept(ipc.OriginPlayer, env)
	default:
		if peer.HandleCommon(ipc.OriginPlayer, env, d.log) {
			return
		}
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
	}
}

func (d *Daemon) cmdPlayTag(env *ipc.Envelope, now time.Time) {
	uid := env.Payload.String("uid")
	if uid == "" {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeBadPayload, "missing uid")
		return
	}
	if !d.requireAuth(env) {
		return
	}

	mapping, err := d.store.Resolve(uid)
	if errors.Is(err, ErrTagUnknown) {
		d.pub.Emit(ipc.EventTagUnknown, ipc.Payload{"uid": uid})
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeTagUnmapped, "tag not in store")
		return
	}
	if err != nil {
		d.log.Error("tag lookup failed", "uid", uid, "error", err)
		d.emitPlaybackError(err)
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeInternal, "tag lookup failed")
		return
	}

	uri, pos := resumePoint(mapping)
	d.pub.Emit(ipc.EventTagResolved, ipc.Payload{"uid": uid, "uri": uri, "position_ms": pos})

	// Hot swap: progress of the outgoing tag is saved before the new
	// one starts.
	if d.state == StatePlaying && d.currentUID != uid {
		d.persistProgress(now)
	}

	if err := d.startPlayback(uid, uri, pos, now); err != nil {
		d.rejectBackend(env, err)
		return
	}
	peer.Accept(ipc.OriginPlayer, env)
}

func (d *Daemon) cmdPlay(env *ipc.Envelope, now time.Time) {
	if !d.requireAuth(env) {
		return
	}
	uri := env.Payload.String("uri")
	if uri == "" {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeBadPayload, "missing uri")
		return
	}
	pos, _ := env.Payload.Int("position_ms")
	if pos < 0 {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeBadPayload, "position_ms must be >= 0")
		return
	}

	if d.state == StatePlaying {
		d.stopPlayback(now)
	}
	if err := d.startPlayback("", uri, pos, now); err != nil {
		d.rejectBackend(env, err)
		return
	}
	peer.Accept(ipc.OriginPlayer, env)
}

func (d *Daemon) cmdSkip(env *ipc.Envelope, op string, call func() error) {
	if d.state != StatePlaying {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeNoActivePlayback, "no active playback")
		return
	}
	if !d.requireAuth(env) {
		return
	}
	if err := call(); err != nil {
		d.backendFault(op, err)
		d.rejectBackend(env, err)
		return
	}
	peer.Accept(ipc.OriginPlayer, env)
}

func (d *Daemon) cmdSeek(env *ipc.Envelope) {
	if d.state != StatePlaying {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeNoActivePlayback, "no active playback")
		return
	}
	if !d.requireAuth(env) {
		return
	}
	delta, ok := env.Payload.Int("delta_ms")
	if !ok {
		peer.Reject(ipc.OriginPlayer, env, ipc.CodeBadPayload, "delta_ms must be an integer")
		return
	}

	status, err := d.backend.Status()
	if err != nil {
		d.backendFault("seek", err)
		d.rejectBackend(env, err)
		return
	}
	pos := status.PositionMS + delta
	if pos < 0 {
		pos = 0
	}
	if err := d.backend.SeekAbs(pos); err != nil {
		d.backendFault("seek", err)
		d.rejectBackend(env, err)
		return
	}
	peer.Accept(ipc.OriginPlayer, env)
}

// Tick persists progress while playing and retries authentication from
// the error state on a backoff schedule.
func (d *Daemon) Tick(now time.Time) {
	switch d.state {
	case StatePlaying:
		if now.Sub(d.lastSave) >= d.cfg.ProgressSaveInterval() {
			d.persistProgress(now)
		}
	case StateError:
		if !now.Before(d.retryAt) {
			d.authenticate(now)
		}
	}
}

// startPlayback asks the backend to play and records the session.
func (d *Daemon) startPlayback(uid, uri string, pos int, now time.Time) error {
	if err := d.backend.Play(uri, pos); err != nil {
		d.log.Error("playback start failed", "uri", uri, "error", err)
		d.backendFault("play", err)
		d.transition(StateError)
		d.retryAt = now.Add(d.backoff.Next())
		return err
	}

	d.currentUID = uid
	d.currentTrack = uri
	d.lastSave = now
	d.pub.Emit(ipc.EventPlayStarted, ipc.Payload{"uid": uid, "uri": uri})
	d.transition(StatePlaying)
	return nil
}

// stopPlayback saves progress, stops the backend and returns to ready.
// Backend failures on stop are reported but do not block the stop: the
// session is over either way.
func (d *Daemon) stopPlayback(now time.Time) {
	if d.state != StatePlaying {
		return
	}
	d.persistProgress(now)
	if err := d.backend.Stop(); err != nil {
		d.log.Error("backend stop failed", "error", err)
		d.backendFault("stop", err)
	}
	d.currentUID = ""
	d.currentTrack = ""
	d.pub.Emit(ipc.EventPlayStopped, nil)
	d.transition(StateReady)
}

// persistProgress writes the current playback position for the active
// tag. Anonymous sessions (direct PLAY with no tag) are not persisted.
func (d *Daemon) persistProgress(now time.Time) {
	if d.currentUID == "" || d.currentTrack == "" {
		return
	}
	status, err := d.backend.Status()
	if err != nil {
		d.log.Error("status read failed during progress save", "error", err)
		d.backendFault("status", err)
		return
	}
	track := status.URI
	if track == "" {
		track = d.currentTrack
	}
	if err := d.store.SaveProgress(d.currentUID, track, status.PositionMS); err != nil {
		d.log.Error("progress save failed", "uid", d.currentUID, "error", err)
		d.emitPlaybackError(err)
		return
	}
	d.currentTrack = track
	d.lastSave = now
}

// resumePoint applies the resume policy: a saved track position wins,
// otherwise the playlist starts from the top.
func resumePoint(m TagMapping) (string, int) {
	if m.LastTrack != "" && m.LastPosMS > 0 {
		return m.LastTrack, m.LastPosMS
	}
	return m.PlaylistURI, 0
}

// requireAuth rejects the command when the session is not
// authenticated.
func (d *Daemon) requireAuth(env *ipc.Envelope) bool {
	if d.auth == authOK {
		return true
	}
	peer.Reject(ipc.OriginPlayer, env, ipc.CodeAuthRequired, "authentication not established")
	return false
}

// backendFault folds a classified backend error into the auth and
// event model.
func (d *Daemon) backendFault(op string, err error) {
	switch peer.Classify(err) {
	case peer.AuthIssue:
		if d.auth == authOK {
			d.emitAuthLost(op)
		} else {
			d.emitAuthFailed(op)
		}
	case peer.ResourceUnavailable:
		d.pub.Emit(ipc.EventDisconnected, nil)
		d.emitAuthLost("device_unavailable:" + op)
	default:
		d.emitPlaybackError(err)
	}
}

// rejectBackend nacks a command that failed in the backend, with a
// code matching the failure class.
func (d *Daemon) rejectBackend(env *ipc.Envelope, err error) {
	code := ipc.CodeInternal
	if peer.Classify(err) == peer.AuthIssue {
		code = ipc.CodeAuthRequired
	}
	peer.Reject(ipc.OriginPlayer, env, code, err.Error())
}

// emitAuthFailed reports failed authentication once per episode.
func (d *Daemon) emitAuthFailed(reason string) {
	if d.auth == authFailed {
		return
	}
	d.auth = authFailed
	d.pub.Emit(ipc.EventAuthFailed, ipc.Payload{"reason": reason})
}

// emitAuthLost reports lost authentication once per episode.
func (d *Daemon) emitAuthLost(reason string) {
	if d.auth == authLost {
		return
	}
	d.auth = authLost
	d.pub.Emit(ipc.EventAuthLost, ipc.Payload{"reason": reason})
}

func (d *Daemon) emitPlaybackError(err error) {
	d.pub.Emit(ipc.EventPlaybackError, ipc.Payload{
		"code":    ipc.CodeInternal,
		"message": err.Error(),
	})
}

func (d *Daemon) transition(next State) {
	if next == d.state {
		return
	}
	old := d.state
	d.state = next
	d.pub.Emit(ipc.EventPlayerState, ipc.Payload{"old": old.String(), "new": next.String()})
	d.log.Info("state transition", "from", old.String(), "to", next.String())
}
