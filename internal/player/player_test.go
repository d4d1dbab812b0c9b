package player

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type playCall struct {
	uri string
	pos int
}

type fakeBackend struct {
	readyErr  error
	playErr   error
	stopErr   error
	skipErr   error
	seekErr   error
	statusErr error

	status Status
	played []playCall
	stops  int
	nexts  int
	prevs  int
	seeks  []int
}

func (b *fakeBackend) EnsureReady() error {
	return b.readyErr
}

func (b *fakeBackend) Play(uri string, pos int) error {
	if b.playErr != nil {
		return b.playErr
	}
	b.played = append(b.played, playCall{uri, pos})
	b.status = Status{Playing: true, URI: uri, PositionMS: pos}
	return nil
}

func (b *fakeBackend) Stop() error {
	if b.stopErr != nil {
		return b.stopErr
	}
	b.stops++
	b.status.Playing = false
	return nil
}

func (b *fakeBackend) Next() error {
	if b.skipErr != nil {
		return b.skipErr
	}
	b.nexts++
	return nil
}

func (b *fakeBackend) Previous() error {
	if b.skipErr != nil {
		return b.skipErr
	}
	b.prevs++
	return nil
}

func (b *fakeBackend) SeekAbs(pos int) error {
	if b.seekErr != nil {
		return b.seekErr
	}
	b.seeks = append(b.seeks, pos)
	b.status.PositionMS = pos
	return nil
}

func (b *fakeBackend) Status() (Status, error) {
	if b.statusErr != nil {
		return Status{}, b.statusErr
	}
	return b.status, nil
}

type harness struct {
	d       *Daemon
	backend *fakeBackend
	store   *TagStore
	events  *ipc.Endpoint
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	eventsPath := filepath.Join(t.TempDir(), "events.sock")
	ep, err := ipc.Bind(eventsPath, ipc.WithReceiveWait(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Bind(events) error = %v", err)
	}
	t.Cleanup(func() { ep.Close() })

	log := logging.New(config.LoggingConfig{Level: "none"}, "test")
	backend := &fakeBackend{}
	store := newStore(t)
	pub := ipc.NewPublisher(ipc.OriginPlayer, eventsPath, log)
	cfg := config.PlayerConfig{
		Enabled:                true,
		TickIntervalMS:         100,
		ProgressSaveIntervalMS: 10000,
		SeekDeltaMS:            15000,
	}
	return &harness{d: New(cfg, store, backend, pub, log), backend: backend, store: store, events: ep}
}

func (h *harness) drain(t *testing.T) []*ipc.Envelope {
	t.Helper()
	var out []*ipc.Envelope
	for {
		env, err := h.events.Receive(context.Background())
		if errors.Is(err, ipc.ErrTimeout) {
			return out
		}
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		out = append(out, env)
	}
}

func eventsNamed(envs []*ipc.Envelope, name string) []*ipc.Envelope {
	var out []*ipc.Envelope
	for _, e := range envs {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) command(t *testing.T, cmd string, payload ipc.Payload, now time.Time) *ipc.Envelope {
	t.Helper()
	replyEP, err := ipc.Bind(filepath.Join(t.TempDir(), "caller.sock"), ipc.WithReceiveWait(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Bind(reply) error = %v", err)
	}
	defer replyEP.Close()

	h.d.HandleMessage(ipc.NewCommand("hcsm", cmd, payload, replyEP.Path(), 0), now)

	ack, err := replyEP.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive(ack) error = %v", err)
	}
	return ack
}

// startPlaying provisions a tag and brings the daemon to PL_PLAYING.
func (h *harness) startPlaying(t *testing.T, uid string) {
	t.Helper()
	if err := h.store.Put(TagMapping{UID: uid, PlaylistURI: "spotify:playlist:p1"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	h.d.Start(t0)
	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": uid}, t0)
	if !ack.IsOK() {
		t.Fatalf("PLAY_TAG ack = %+v", ack)
	}
	if h.d.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", h.d.State())
	}
}

func TestDaemon_StartupAuthentication(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	if h.d.State() != StateReady {
		t.Fatalf("state = %v, want ready", h.d.State())
	}
	all := h.drain(t)
	if got := eventsNamed(all, ipc.EventAuthenticated); len(got) != 1 {
		t.Errorf("authenticated events = %d, want 1", len(got))
	}
	changes := eventsNamed(all, ipc.EventPlayerState)
	if len(changes) != 2 {
		t.Fatalf("state changes = %d, want init->authenticating->ready", len(changes))
	}
	if changes[1].Payload.String("new") != "PL_READY" {
		t.Errorf("final state change = %+v", changes[1].Payload)
	}
}

func TestDaemon_StartupAuthFailureAndRecovery(t *testing.T) {
	h := newHarness(t)
	h.backend.readyErr = peer.NewFailure(peer.AuthIssue, "token refresh", errors.New("invalid_grant"))
	h.d.Start(t0)

	if h.d.State() != StateError {
		t.Fatalf("state = %v, want error", h.d.State())
	}
	if got := eventsNamed(h.drain(t), ipc.EventAuthFailed); len(got) != 1 {
		t.Fatalf("auth failed events = %d, want 1", len(got))
	}

	// Inside the backoff window nothing is retried.
	h.d.Tick(t0.Add(time.Second))
	if h.d.State() != StateError {
		t.Fatalf("state = %v, want error inside backoff", h.d.State())
	}

	h.backend.readyErr = nil
	h.d.Tick(t0.Add(6 * time.Second))
	if h.d.State() != StateReady {
		t.Fatalf("state = %v, want ready after retry", h.d.State())
	}
	if got := eventsNamed(h.drain(t), ipc.EventAuthenticated); len(got) != 1 {
		t.Errorf("authenticated events = %d, want 1", len(got))
	}
}

func TestDaemon_PlayTagFreshStartsPlaylist(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")

	all := h.drain(t)
	resolved := eventsNamed(all, ipc.EventTagResolved)
	if len(resolved) != 1 {
		t.Fatalf("resolved events = %d, want 1", len(resolved))
	}
	if resolved[0].Payload.String("uri") != "spotify:playlist:p1" {
		t.Errorf("resolved uri = %q, want playlist", resolved[0].Payload.String("uri"))
	}
	if pos, _ := resolved[0].Payload.Int("position_ms"); pos != 0 {
		t.Errorf("resolved position = %d, want 0", pos)
	}
	if got := eventsNamed(all, ipc.EventPlayStarted); len(got) != 1 {
		t.Errorf("play started events = %d, want 1", len(got))
	}
	if len(h.backend.played) != 1 || h.backend.played[0] != (playCall{"spotify:playlist:p1", 0}) {
		t.Errorf("backend played = %+v", h.backend.played)
	}
}

func TestDaemon_PlayTagResumesSavedPosition(t *testing.T) {
	h := newHarness(t)
	if err := h.store.Put(TagMapping{
		UID:         "04A2",
		PlaylistURI: "spotify:playlist:p1",
		LastTrack:   "spotify:track:t7",
		LastPosMS:   93000,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	h.d.Start(t0)

	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": "04A2"}, t0)
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}
	if len(h.backend.played) != 1 || h.backend.played[0] != (playCall{"spotify:track:t7", 93000}) {
		t.Errorf("backend played = %+v, want saved resume point", h.backend.played)
	}
}

func TestDaemon_PlayTagUnknown(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": "DEAD"}, t0)
	if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeTagUnmapped {
		t.Errorf("ack = %+v, want %s rejection", ack, ipc.CodeTagUnmapped)
	}
	if got := eventsNamed(h.drain(t), ipc.EventTagUnknown); len(got) != 1 {
		t.Errorf("tag unknown events = %d, want 1", len(got))
	}
	if h.d.State() != StateReady {
		t.Errorf("state = %v, want ready unchanged", h.d.State())
	}
}

func TestDaemon_PlayTagValidation(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	ack := h.command(t, ipc.CmdPlayTag, nil, t0)
	if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeBadPayload {
		t.Errorf("ack = %+v, want %s rejection", ack, ipc.CodeBadPayload)
	}
}

func TestDaemon_PlayTagRequiresAuth(t *testing.T) {
	h := newHarness(t)
	h.backend.readyErr = peer.NewFailure(peer.AuthIssue, "token refresh", errors.New("expired"))
	h.d.Start(t0)

	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": "04A1"}, t0)
	if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeAuthRequired {
		t.Errorf("ack = %+v, want %s rejection", ack, ipc.CodeAuthRequired)
	}
}

func TestDaemon_StopPersistsProgress(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")
	h.drain(t)

	h.backend.status = Status{Playing: true, URI: "spotify:track:t3", PositionMS: 42000}
	ack := h.command(t, ipc.CmdStop, nil, t0.Add(time.Minute))
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}
	if h.d.State() != StateReady {
		t.Errorf("state = %v, want ready", h.d.State())
	}
	if h.backend.stops != 1 {
		t.Errorf("backend stops = %d, want 1", h.backend.stops)
	}
	if got := eventsNamed(h.drain(t), ipc.EventPlayStopped); len(got) != 1 {
		t.Errorf("play stopped events = %d, want 1", len(got))
	}

	m, err := h.store.Resolve("04A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if m.LastTrack != "spotify:track:t3" || m.LastPosMS != 42000 {
		t.Errorf("saved progress = %+v", m)
	}
}

func TestDaemon_StopIdempotentWhenNotPlaying(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	ack := h.command(t, ipc.CmdStop, nil, t0)
	if !ack.IsOK() {
		t.Errorf("ack = %+v, want ok", ack)
	}
	if h.backend.stops != 0 {
		t.Errorf("backend stops = %d, want 0", h.backend.stops)
	}
}

func TestDaemon_SkipOutsidePlayback(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	for _, cmd := range []string{ipc.CmdNext, ipc.CmdPrevious, ipc.CmdSeek} {
		ack := h.command(t, cmd, ipc.Payload{"delta_ms": 1000.0}, t0)
		if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeNoActivePlayback {
			t.Errorf("%s ack = %+v, want %s rejection", cmd, ack, ipc.CodeNoActivePlayback)
		}
	}
}

func TestDaemon_SeekComputesAbsolutePosition(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")
	h.backend.status.PositionMS = 60000

	ack := h.command(t, ipc.CmdSeek, ipc.Payload{"delta_ms": -15000.0}, t0)
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}
	if len(h.backend.seeks) != 1 || h.backend.seeks[0] != 45000 {
		t.Errorf("seeks = %+v, want [45000]", h.backend.seeks)
	}

	// A rewind past the start clamps to zero.
	ack = h.command(t, ipc.CmdSeek, ipc.Payload{"delta_ms": -500000.0}, t0)
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}
	if h.backend.seeks[1] != 0 {
		t.Errorf("clamped seek = %d, want 0", h.backend.seeks[1])
	}
}

func TestDaemon_NextAndPrevious(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")

	if ack := h.command(t, ipc.CmdNext, nil, t0); !ack.IsOK() {
		t.Fatalf("next ack = %+v", ack)
	}
	if ack := h.command(t, ipc.CmdPrevious, nil, t0); !ack.IsOK() {
		t.Fatalf("previous ack = %+v", ack)
	}
	if h.backend.nexts != 1 || h.backend.prevs != 1 {
		t.Errorf("nexts = %d, prevs = %d, want 1 each", h.backend.nexts, h.backend.prevs)
	}
}

func TestDaemon_ProgressSavedOnInterval(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")
	h.backend.status = Status{Playing: true, URI: "spotify:track:t1", PositionMS: 5000}

	h.d.Tick(t0.Add(5 * time.Second))
	m, _ := h.store.Resolve("04A1")
	if m.LastTrack != "" {
		t.Fatalf("progress saved inside the interval: %+v", m)
	}

	h.d.Tick(t0.Add(11 * time.Second))
	m, err := h.store.Resolve("04A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if m.LastTrack != "spotify:track:t1" || m.LastPosMS != 5000 {
		t.Errorf("saved progress = %+v", m)
	}
}

func TestDaemon_HotSwapPersistsOutgoingTag(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")
	if err := h.store.Put(TagMapping{UID: "04B2", PlaylistURI: "spotify:playlist:p2"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	h.backend.status = Status{Playing: true, URI: "spotify:track:t1", PositionMS: 30000}
	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": "04B2"}, t0.Add(time.Minute))
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}

	old, err := h.store.Resolve("04A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if old.LastTrack != "spotify:track:t1" || old.LastPosMS != 30000 {
		t.Errorf("outgoing tag progress = %+v", old)
	}
	if h.d.State() != StatePlaying {
		t.Errorf("state = %v, want playing the new tag", h.d.State())
	}
}

func TestDaemon_DeviceLossOnPlay(t *testing.T) {
	h := newHarness(t)
	if err := h.store.Put(TagMapping{UID: "04C3", PlaylistURI: "spotify:playlist:p3"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	h.d.Start(t0)
	h.drain(t)

	h.backend.playErr = peer.NewFailure(peer.ResourceUnavailable, "play", errors.New("no active device"))
	ack := h.command(t, ipc.CmdPlayTag, ipc.Payload{"uid": "04C3"}, t0)
	if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeInternal {
		t.Errorf("ack = %+v, want %s rejection", ack, ipc.CodeInternal)
	}
	if h.d.State() != StateError {
		t.Errorf("state = %v, want error", h.d.State())
	}

	all := h.drain(t)
	if got := eventsNamed(all, ipc.EventDisconnected); len(got) != 1 {
		t.Errorf("disconnected events = %d, want 1", len(got))
	}
	if got := eventsNamed(all, ipc.EventAuthLost); len(got) != 1 {
		t.Errorf("auth lost events = %d, want 1", len(got))
	}
}

func TestDaemon_ShutdownPersistsAndFlags(t *testing.T) {
	h := newHarness(t)
	h.startPlaying(t, "04A1")
	h.backend.status = Status{Playing: true, URI: "spotify:track:t9", PositionMS: 12000}

	ack := h.command(t, ipc.CmdPlayerShutdown, nil, t0.Add(time.Minute))
	if !ack.IsOK() {
		t.Fatalf("ack = %+v", ack)
	}
	if !h.d.ShutdownRequested() {
		t.Errorf("ShutdownRequested() = false, want true")
	}
	m, err := h.store.Resolve("04A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if m.LastTrack != "spotify:track:t9" || m.LastPosMS != 12000 {
		t.Errorf("saved progress = %+v", m)
	}
}

func TestDaemon_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.d.Start(t0)

	ack := h.command(t, "PLSM_COMMAND_VOLUME", nil, t0)
	if ack.IsOK() || ack.Error == nil || ack.Error.Code != ipc.CodeUnknownCmd {
		t.Errorf("ack = %+v, want %s rejection", ack, ipc.CodeUnknownCmd)
	}
}
