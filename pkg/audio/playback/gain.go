package playback

import (
	"math"
	"sync"
)

// Gain is a single multiplicative stage applied to everything a [Context]
// renders. Scheduled changes follow setTargetAtTime semantics: once the clock
// reaches the start time the value approaches the target exponentially with
// the given time constant.
type Gain struct {
	rate int

	mu      sync.Mutex
	value   float64
	target  float64
	start   int64
	coef    float64
	pending bool
}

func newGain(rate int, initial float64) *Gain {
	return &Gain{rate: rate, value: initial, target: initial}
}

// Value returns the current gain.
func (g *Gain) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Target returns the value the stage is approaching.
func (g *Gain) Target() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target
}

// SetValue jumps to v immediately and cancels any pending ramp.
func (g *Gain) SetValue(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
	g.target = v
	g.pending = false
}

// SetTargetAtTime starts an exponential approach to target at startTime
// (seconds on the context clock). A non-positive timeConstant jumps to the
// target at startTime.
func (g *Gain) SetTargetAtTime(target, startTime, timeConstant float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = target
	g.start = int64(math.Round(startTime * float64(g.rate)))
	if timeConstant <= 0 {
		g.coef = 1
	} else {
		g.coef = 1 - math.Exp(-1/(timeConstant*float64(g.rate)))
	}
	g.pending = true
}

// apply multiplies out, whose first sample is frame from, by the per-sample
// gain and advances the ramp.
func (g *Gain) apply(out []float32, from int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range out {
		if g.pending && from+int64(i) >= g.start {
			g.value += (g.target - g.value) * g.coef
			if math.Abs(g.target-g.value) < 1e-6 {
				g.value = g.target
				g.pending = false
			}
		}
		out[i] *= float32(g.value)
	}
}
