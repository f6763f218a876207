// Package effect generates time-based brightness sequences. Every sample is
// a pure function of elapsed time and parameters, so any instant can be
// recomputed or replayed; there are no internal counters.
package effect

import (
	"encoding/binary"
	"time"

	"github.com/zeebo/xxh3"
)

// Params holds the fixed effect parameters supplied by configuration.
type Params struct {
	Channels        int
	SteadyIntensity int           // target level after startup, 0-100
	StartupRamp     time.Duration // 0 -> steady ramp duration
	ShutdownRamp    time.Duration // current -> 0 ramp duration
	FlickerTick     time.Duration // flicker resample interval
	Seed            uint64        // flicker generator seed
}

// Range bounds the pseudo-random flicker intensity.
type Range struct {
	Min int
	Max int
}

// Engine samples intensities for the agent's modes.
type Engine struct {
	params Params
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Off returns all channels dark.
func (e *Engine) Off() []int {
	return make([]int, e.params.Channels)
}

// Steady returns all channels at the configured steady intensity.
func (e *Engine) Steady() []int {
	values := make([]int, e.params.Channels)
	for i := range values {
		values[i] = e.params.SteadyIntensity
	}
	return values
}

// Startup returns the monotonic ramp from 0 to the steady intensity at the
// given elapsed time since entering Startup.
func (e *Engine) Startup(elapsed time.Duration) []int {
	level := e.params.SteadyIntensity
	if elapsed < e.params.StartupRamp && e.params.StartupRamp > 0 {
		level = int(int64(level) * int64(elapsed) / int64(e.params.StartupRamp))
	}
	values := make([]int, e.params.Channels)
	for i := range values {
		values[i] = level
	}
	return values
}

// StartupDone reports whether the startup ramp has completed.
func (e *Engine) StartupDone(elapsed time.Duration) bool {
	return elapsed >= e.params.StartupRamp
}

// Flicker returns pseudo-random per-channel intensities within rng,
// resampled once per tick interval. The value depends only on the seed, the
// tick index and the channel, so a fixed seed replays identically.
func (e *Engine) Flicker(elapsed time.Duration, rng Range) []int {
	tick := uint64(0)
	if e.params.FlickerTick > 0 {
		tick = uint64(elapsed / e.params.FlickerTick)
	}
	span := rng.Max - rng.Min + 1
	if span < 1 {
		span = 1
	}

	values := make([]int, e.params.Channels)
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], tick)
	for i := range values {
		binary.LittleEndian.PutUint64(buf[8:16], uint64(i))
		h := xxh3.HashSeed(buf[:], e.params.Seed)
		values[i] = rng.Min + int(h%uint64(span))
	}
	return values
}

// Shutdown returns the ramp from the intensities recorded at shutdown entry
// down to 0, and whether the ramp has completed.
func (e *Engine) Shutdown(elapsed time.Duration, from []int) ([]int, bool) {
	values := make([]int, e.params.Channels)
	if elapsed >= e.params.ShutdownRamp || e.params.ShutdownRamp <= 0 {
		return values, true
	}
	remaining := e.params.ShutdownRamp - elapsed
	for i := range values {
		if i < len(from) {
			values[i] = int(int64(from[i]) * int64(remaining) / int64(e.params.ShutdownRamp))
		}
	}
	return values, false
}
