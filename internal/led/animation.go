package led

import (
	"math"
	"time"
)

// RGB is one pixel colour before brightness is applied.
type RGB struct {
	R, G, B uint8
}

// Mode selects between a constant colour and a periodic wave.
type Mode string

const (
	ModeSteady Mode = "steady"
	ModeWave   Mode = "wave"
)

// Shape selects the wave form of a ModeWave animation.
type Shape string

const (
	ShapeSquare  Shape = "square"
	ShapeSmooth  Shape = "smooth"
	ShapeFadeIn  Shape = "fade_in"
	ShapeFadeOut Shape = "fade_out"
)

// Animation describes one LED layer. The base layer runs unbounded;
// feedback layers may bound themselves by duration or cycle count.
type Animation struct {
	Mode       Mode
	Color      RGB
	Brightness int
	Shape      Shape
	Period     time.Duration
	DutyCycle  float64
	Cycles     int           // 0 means unbounded
	Duration   time.Duration // 0 means unbounded

	start time.Time
}

// factor returns the wave multiplier at now, in [0, 1].
func (a *Animation) factor(now time.Time) float64 {
	if a.Mode == ModeSteady || a.Period <= 0 {
		return 1
	}
	elapsed := now.Sub(a.start)
	phase := float64(elapsed%a.Period) / float64(a.Period)
	switch a.Shape {
	case ShapeSquare:
		if phase < clamp(a.DutyCycle, 0, 1) {
			return 1
		}
		return 0
	case ShapeFadeIn:
		return clamp(float64(elapsed)/float64(a.Period), 0, 1)
	case ShapeFadeOut:
		return clamp(1-float64(elapsed)/float64(a.Period), 0, 1)
	default:
		return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
	}
}

// expired reports whether a bounded layer has run its course.
func (a *Animation) expired(now time.Time) bool {
	elapsed := now.Sub(a.start)
	if a.Duration > 0 && elapsed >= a.Duration {
		return true
	}
	if a.Cycles > 0 && a.Period > 0 && int(elapsed/a.Period) >= a.Cycles {
		return true
	}
	return false
}

// render scales the base colour by brightness and the wave factor.
func (a *Animation) render(now time.Time) RGB {
	f := float64(a.Brightness) / 255 * a.factor(now)
	return RGB{
		R: uint8(float64(a.Color.R) * f),
		G: uint8(float64(a.Color.G) * f),
		B: uint8(float64(a.Color.B) * f),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// hsvToRGB converts a hue sweep position to a colour. s and v are in
// [0, 1]; used for the error rainbow.
func hsvToRGB(h, s, v float64) RGB {
	h = math.Mod(h, 1) * 6
	i := int(h)
	f := h - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return RGB{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
}
