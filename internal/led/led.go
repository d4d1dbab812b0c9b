package led

import (
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// Error sweep parameters. The rainbow makes a fault visible from
// across the room regardless of what colour the base layer uses.
const (
	errorPeriod     = 10 * time.Second
	errorBrightness = 160
)

// Renderer pushes one colour to the LED hardware. Pixel-level driving
// (strip protocol, PWM, gamma) lives behind it.
type Renderer interface {
	Render(RGB) error
	Off() error
}

// stateAnimations maps orchestrator states to the base layer shown
// while that state holds. SYS_ERROR is absent: it is rendered as the
// error sweep, not a base colour.
var stateAnimations = map[string]Animation{
	"SYS_INIT":         {Mode: ModeWave, Shape: ShapeSmooth, Period: 2 * time.Second, Color: RGB{255, 255, 255}, Brightness: 120},
	"SYS_NO_WIFI":      {Mode: ModeWave, Shape: ShapeSmooth, Period: 1500 * time.Millisecond, Color: RGB{255, 120, 0}, Brightness: 200},
	"SYS_OFFLINE":      {Mode: ModeWave, Shape: ShapeSmooth, Period: 2 * time.Second, Color: RGB{0, 80, 255}, Brightness: 160},
	"SYS_READY_PAUSED": {Mode: ModeSteady, Color: RGB{0, 255, 0}, Brightness: 80},
	"SYS_PLAYING":      {Mode: ModeSteady, Color: RGB{0, 255, 0}, Brightness: 200},
	"SYS_SHUTDOWN":     {Mode: ModeWave, Shape: ShapeFadeOut, Period: 1500 * time.Millisecond, Color: RGB{255, 0, 0}, Brightness: 200},
}

// Daemon is the LED daemon. It follows orchestrator state changes for
// its base layer and accepts direct commands for feedback flashes and
// the error sweep. Implements peer.Handler.
type Daemon struct {
	cfg config.LEDConfig
	r   Renderer
	pub *ipc.Publisher
	log *logging.Logger

	started      time.Time
	current      Animation
	feedback     *Animation
	errorActive  bool
	errorStart   time.Time
	renderBroken bool
}

// New assembles the daemon. The LED starts dark until the first state
// change or command arrives.
func New(cfg config.LEDConfig, r Renderer, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		r:       r,
		pub:     pub,
		log:     log,
		current: Animation{Mode: ModeSteady},
	}
}

// Start announces the daemon on the bus.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.pub.Emit(ipc.EventLEDStarted, ipc.Payload{"version": 1, "pid": os.Getpid()})
	d.log.Info("led daemon started")
}

// Stop darkens the LED and announces the daemon leaving the bus.
func (d *Daemon) Stop(reason string) {
	if err := d.r.Off(); err != nil {
		d.log.Warn("led off failed", "error", err)
	}
	d.pub.Emit(ipc.EventLEDStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("led daemon stopped", "reason", reason)
}

// HandleMessage follows HCSM_EVENT_STATE_CHANGED mirrored to this
// endpoint and answers the LED command set.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema == ipc.SchemaEvent {
		if env.Event == ipc.EventStateChanged {
			d.applyState(env.Payload.String("new"), now)
		}
		return
	}
	if env.Schema != ipc.SchemaCmd {
		return
	}

	switch env.Cmd {
	case ipc.CmdLEDSetState:
		anim, ok := parseAnimation(env.Payload, Animation{Mode: ModeSteady, Brightness: 255, DutyCycle: 0.5})
		if !ok {
			peer.Reject(ipc.OriginLED, env, ipc.CodeBadPayload, "color must be {r, g, b} in 0..255")
			return
		}
		anim.start = now
		d.current = anim
		peer.Accept(ipc.OriginLED, env)

	case ipc.CmdLEDSetFeedback:
		anim, ok := parseAnimation(env.Payload, Animation{
			Mode:       ModeWave,
			Shape:      ShapeSmooth,
			Period:     500 * time.Millisecond,
			Brightness: 255,
			DutyCycle:  0.5,
		})
		if !ok {
			peer.Reject(ipc.OriginLED, env, ipc.CodeBadPayload, "color must be {r, g, b} in 0..255")
			return
		}
		anim.start = now
		d.feedback = &anim
		peer.Accept(ipc.OriginLED, env)

	case ipc.CmdLEDSetError:
		d.errorActive = env.Payload.Bool("enabled")
		d.errorStart = time.Time{}
		peer.Accept(ipc.OriginLED, env)

	case ipc.CmdLEDOff:
		d.current = Animation{Mode: ModeSteady, start: now}
		d.feedback = nil
		d.errorActive = false
		peer.Accept(ipc.OriginLED, env)

	case ipc.CmdLEDPing:
		peer.Accept(ipc.OriginLED, env)
		peer.Finish(ipc.OriginLED, env, ipc.Payload{
			"status":          "ok",
			"feedback_active": d.feedback != nil,
			"error_active":    d.errorActive,
			"uptime_ms":       now.Sub(d.started).Milliseconds(),
		})

	default:
		if peer.HandleCommon(ipc.OriginLED, env, d.log) {
			return
		}
		peer.Reject(ipc.OriginLED, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
	}
}

// applyState swaps the base layer for the one mapped to the new
// orchestrator state. SYS_ERROR raises the error sweep instead; any
// other state clears it.
func (d *Daemon) applyState(state string, now time.Time) {
	if state == "SYS_ERROR" {
		d.errorActive = true
		d.errorStart = time.Time{}
		return
	}
	d.errorActive = false
	anim, ok := stateAnimations[state]
	if !ok {
		d.log.Warn("no pattern for state", "state", state)
		return
	}
	anim.start = now
	d.current = anim
	d.log.Debug("pattern changed", "state", state)
}

// Tick renders the currently active layer.
func (d *Daemon) Tick(now time.Time) {
	if err := d.r.Render(d.activeColor(now)); err != nil {
		if !d.renderBroken {
			d.renderBroken = true
			d.log.Error("led render failed", "error", err)
		}
		return
	}
	d.renderBroken = false
}

// activeColor layers error sweep over feedback over the base state.
func (d *Daemon) activeColor(now time.Time) RGB {
	if d.errorActive {
		if d.errorStart.IsZero() {
			d.errorStart = now
		}
		elapsed := now.Sub(d.errorStart) % errorPeriod
		hue := float64(elapsed) / float64(errorPeriod)
		return hsvToRGB(hue, 1, errorBrightness/255.0)
	}

	if d.feedback != nil && d.feedback.expired(now) {
		d.feedback = nil
	}
	if d.feedback != nil {
		return d.feedback.render(now)
	}
	return d.current.render(now)
}

// parseAnimation builds an animation from a command payload on top of
// per-command defaults. A missing or malformed color is the one hard
// failure; everything else falls back to the defaults.
func parseAnimation(p ipc.Payload, defaults Animation) (Animation, bool) {
	anim := defaults

	c, ok := p["color"].(map[string]any)
	if !ok {
		return Animation{}, false
	}
	color := ipc.Payload(c)
	r, okR := color.Int("r")
	g, okG := color.Int("g")
	b, okB := color.Int("b")
	if !okR || !okG || !okB {
		return Animation{}, false
	}
	anim.Color = RGB{clamp8(r), clamp8(g), clamp8(b)}

	if mode := p.String("mode"); mode != "" {
		anim.Mode = Mode(mode)
	}
	if shape := p.String("shape"); shape != "" {
		anim.Shape = Shape(shape)
	}
	if v, ok := p.Int("brightness"); ok {
		anim.Brightness = int(clamp(float64(v), 0, 255))
	}
	if v, ok := p.Int("period_ms"); ok {
		anim.Period = time.Duration(v) * time.Millisecond
	}
	if v, ok := p.Float("duty_cycle"); ok {
		anim.DutyCycle = v
	}
	if v, ok := p.Int("cycles"); ok {
		anim.Cycles = v
	}
	if v, ok := p.Int("duration_ms"); ok {
		anim.Duration = time.Duration(v) * time.Millisecond
	}
	return anim, true
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
