package debounce

import "time"

// Kind classifies a completed or in-progress button interaction.
type Kind int

const (
	// ShortPress is a release after at least ShortMin but before
	// LongThreshold of stable press time.
	ShortPress Kind = iota
	// LongPress is a release after at least LongThreshold of stable
	// press time.
	LongPress
	// HoldTick fires periodically while a press is held beyond
	// LongThreshold, letting consumers repeat an action (seek, volume
	// ramp) without waiting for the release.
	HoldTick
)

// String returns the wire name used in BD_EVENT_BUTTON payloads.
func (k Kind) String() string {
	switch k {
	case ShortPress:
		return "SHORT_PRESS"
	case LongPress:
		return "LONG_PRESS"
	case HoldTick:
		return "HOLD_TICK"
	default:
		return "UNKNOWN"
	}
}

// Interaction is one classified button interaction. Duration is the
// stable press time at the moment the interaction fired. Sequence is
// a per-FSM counter, strictly increasing by one per emitted
// interaction; consumers use it for audit and ordering within one
// input, not for uniqueness across inputs.
type Interaction struct {
	Kind     Kind
	Duration time.Duration
	Sequence uint64
}

// Config holds the classifier timing. Zero fields take the defaults.
type Config struct {
	// Debounce is how long a raw level change must persist before it
	// is accepted as a real edge.
	Debounce time.Duration
	// ShortMin is the minimum stable press time for a ShortPress;
	// shorter presses are discarded as bounce.
	ShortMin time.Duration
	// LongThreshold separates short from long presses.
	LongThreshold time.Duration
	// HoldTick is the interval between hold ticks once a press has
	// been held past LongThreshold.
	HoldTick time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 30 * time.Millisecond
	}
	if c.ShortMin <= 0 {
		c.ShortMin = 50 * time.Millisecond
	}
	if c.LongThreshold <= 0 {
		c.LongThreshold = 800 * time.Millisecond
	}
	if c.HoldTick <= 0 {
		c.HoldTick = 250 * time.Millisecond
	}
	return c
}

// FSM debounces one button line and classifies its interactions.
//
// Callers sample the raw line level at their polling cadence and feed
// every sample through Update together with the sample time. The FSM
// never reads the clock itself.
type FSM struct {
	cfg Config

	// Raw edge tracking.
	rawLevel bool
	rawSince time.Time
	rawInit  bool

	// Debounced state.
	pressed      bool
	pressedAt    time.Time
	lastHoldTick time.Time

	seq uint64
}

// NewFSM builds a classifier with the given timing. The line starts
// released.
func NewFSM(cfg Config) *FSM {
	return &FSM{cfg: cfg.withDefaults()}
}

// Pressed reports the debounced state of the line.
func (f *FSM) Pressed() bool {
	return f.pressed
}

// Update feeds one raw sample (true = pressed) taken at now and
// returns any interactions that completed or fired.
//
// A raw level change is accepted only after it has persisted for the
// debounce window. While a press is held past LongThreshold, a
// HoldTick fires whenever HoldTick time has passed since the last one;
// the reference point starts at the press itself, so the first tick
// lands together with the threshold crossing. On release, the press is
// classified by its total stable duration: LongPress at or above
// LongThreshold, ShortPress at or above ShortMin, otherwise dropped.
func (f *FSM) Update(level bool, now time.Time) []Interaction {
	if !f.rawInit || level != f.rawLevel {
		f.rawLevel = level
		f.rawSince = now
		f.rawInit = true
	}

	var out []Interaction

	if f.rawLevel != f.pressed && now.Sub(f.rawSince) >= f.cfg.Debounce {
		if f.rawLevel {
			// Stable press edge. Anchor the press at the moment the
			// raw edge arrived, not when the debounce window closed,
			// so durations reflect the physical press.
			f.pressed = true
			f.pressedAt = f.rawSince
			f.lastHoldTick = f.rawSince
		} else {
			f.pressed = false
			duration := f.rawSince.Sub(f.pressedAt)
			switch {
			case duration >= f.cfg.LongThreshold:
				out = append(out, f.emit(LongPress, duration))
			case duration >= f.cfg.ShortMin:
				out = append(out, f.emit(ShortPress, duration))
			}
		}
	}

	if f.pressed {
		held := now.Sub(f.pressedAt)
		if held >= f.cfg.LongThreshold && now.Sub(f.lastHoldTick) >= f.cfg.HoldTick {
			f.lastHoldTick = now
			out = append(out, f.emit(HoldTick, held))
		}
	}

	return out
}

func (f *FSM) emit(kind Kind, duration time.Duration) Interaction {
	f.seq++
	return Interaction{Kind: kind, Duration: duration, Sequence: f.seq}
}

// ForceRelease resets the FSM to the released state without emitting
// an interaction. Button daemons call it when the underlying line
// read fails, so a press in flight during a hardware fault never
// produces a phantom interaction on recovery.
func (f *FSM) ForceRelease() {
	f.pressed = false
	f.rawLevel = false
	f.rawInit = false
}
