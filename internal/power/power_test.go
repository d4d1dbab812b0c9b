package power

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	state BatteryState
	err   error
}

func (s *fakeSource) Read() (BatteryState, error) { return s.state, s.err }

type harness struct {
	d      *Daemon
	src    *fakeSource
	events *ipc.Endpoint
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
	src := &fakeSource{state: BatteryState{SoC: 80, Band: BandNormal, TempBand: TempOK}}
	pub := ipc.NewPublisher(ipc.OriginPower, eventsPath, log)
	cfg := config.PowerConfig{Enabled: true, TickIntervalMS: 200, HeartbeatSeconds: 30, CriticalSoC: 5}
	return &harness{d: New(cfg, src, pub, log), src: src, events: ep}
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

func TestDaemon_HeartbeatPeriod(t *testing.T) {
	h := newHarness(t)

	// First tick heartbeats immediately, then every 30s.
	h.d.Tick(t0)
	h.d.Tick(t0.Add(10 * time.Second))
	h.d.Tick(t0.Add(29 * time.Second))
	h.d.Tick(t0.Add(31 * time.Second))

	beats := eventsNamed(h.drain(t), ipc.EventBatteryState)
	if len(beats) != 2 {
		t.Fatalf("heartbeats = %d, want 2", len(beats))
	}
	p := beats[0].Payload
	if soc, _ := p.Int("soc"); soc != 80 {
		t.Errorf("soc = %d, want 80", soc)
	}
	if p.String("band") != BandNormal || p.String("temp_band") != TempOK {
		t.Errorf("payload = %+v", p)
	}
}

func TestDaemon_CriticalOncePerEpisode(t *testing.T) {
	h := newHarness(t)

	h.src.state = BatteryState{SoC: 4, Band: BandCritical}
	h.d.Tick(t0)
	h.d.Tick(t0.Add(time.Second))
	h.d.Tick(t0.Add(2 * time.Second))

	crit := eventsNamed(h.drain(t), ipc.EventBatteryCritical)
	if len(crit) != 1 {
		t.Fatalf("critical events = %d, want 1 per episode", len(crit))
	}
	if soc, _ := crit[0].Payload.Int("soc"); soc != 4 {
		t.Errorf("soc = %d, want 4", soc)
	}

	// Recovery rearms the edge; the next drop fires again.
	h.src.state = BatteryState{SoC: 50, Band: BandNormal}
	h.d.Tick(t0.Add(3 * time.Second))
	h.src.state = BatteryState{SoC: 3, Band: BandCritical}
	h.d.Tick(t0.Add(4 * time.Second))

	crit = eventsNamed(h.drain(t), ipc.EventBatteryCritical)
	if len(crit) != 1 {
		t.Errorf("critical events after recovery = %d, want 1", len(crit))
	}
}

func TestDaemon_ExternalPowerSuppressesCritical(t *testing.T) {
	h := newHarness(t)

	h.src.state = BatteryState{SoC: 3, Band: BandCharging, ExtPower: true}
	h.d.Tick(t0)

	if crit := eventsNamed(h.drain(t), ipc.EventBatteryCritical); len(crit) != 0 {
		t.Errorf("critical events = %d, want none on external power", len(crit))
	}
}

func TestDaemon_SocFloorTripsWithoutBand(t *testing.T) {
	h := newHarness(t)

	// The gauge may lag the band; the configured floor still trips.
	h.src.state = BatteryState{SoC: 5, Band: BandLow}
	h.d.Tick(t0)

	if crit := eventsNamed(h.drain(t), ipc.EventBatteryCritical); len(crit) != 1 {
		t.Errorf("critical events = %d, want 1 at the SoC floor", len(crit))
	}
}

func TestDaemon_ReadFailureSkipsHeartbeat(t *testing.T) {
	h := newHarness(t)
	h.src.err = errors.New("i2c read failed")

	h.d.Tick(t0)
	h.d.Tick(t0.Add(time.Second))

	if got := h.drain(t); len(got) != 0 {
		t.Errorf("events = %d, want none while reads fail", len(got))
	}
}

func TestDaemon_Ping(t *testing.T) {
	h := newHarness(t)

	replyEP, err := ipc.Bind(filepath.Join(t.TempDir(), "caller.sock"), ipc.WithReceiveWait(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Bind(reply) error = %v", err)
	}
	defer replyEP.Close()

	cmd := ipc.NewCommand("hcsm", "POWD_CMD_PING", nil, replyEP.Path(), 0)
	h.d.HandleMessage(cmd, t0)

	ack, err := replyEP.Receive(context.Background())
	if err != nil || !ack.IsOK() {
		t.Fatalf("ack = %+v, err = %v", ack, err)
	}
	res, err := replyEP.Receive(context.Background())
	if err != nil || res.Payload.String("status") != "ok" {
		t.Fatalf("result = %+v, err = %v", res, err)
	}
}
