package effect

import (
	"testing"
	"time"
)

func testParams() Params {
	return Params{
		Channels:        4,
		SteadyIntensity: 80,
		StartupRamp:     4 * time.Second,
		ShutdownRamp:    time.Second,
		FlickerTick:     50 * time.Millisecond,
		Seed:            7,
	}
}

func TestStartupRampIsMonotonic(t *testing.T) {
	e := NewEngine(testParams())

	prev := -1
	for elapsed := time.Duration(0); elapsed <= 5*time.Second; elapsed += 100 * time.Millisecond {
		values := e.Startup(elapsed)
		for i, v := range values {
			if v != values[0] {
				t.Fatalf("startup channel %d = %d, channels should match, got %v", i, v, values)
			}
		}
		if values[0] < prev {
			t.Fatalf("startup ramp went down at %v: %d -> %d", elapsed, prev, values[0])
		}
		prev = values[0]
	}
	if prev != 80 {
		t.Errorf("startup ramp ended at %d, want steady 80", prev)
	}
}

func TestStartupIsPureFunctionOfElapsed(t *testing.T) {
	e := NewEngine(testParams())
	a := e.Startup(2 * time.Second)
	_ = e.Startup(3 * time.Second)
	b := e.Startup(2 * time.Second)
	if a[0] != b[0] {
		t.Errorf("re-querying the same instant gave %d then %d", a[0], b[0])
	}
	if a[0] != 40 {
		t.Errorf("halfway up a 0->80 ramp = %d, want 40", a[0])
	}
}

func TestStartupDone(t *testing.T) {
	e := NewEngine(testParams())
	if e.StartupDone(3 * time.Second) {
		t.Error("startup done before ramp duration")
	}
	if !e.StartupDone(4 * time.Second) {
		t.Error("startup not done at ramp duration")
	}
}

func TestFlickerStaysInRange(t *testing.T) {
	e := NewEngine(testParams())
	rng := Range{Min: 10, Max: 90}

	for elapsed := time.Duration(0); elapsed < 2*time.Second; elapsed += 50 * time.Millisecond {
		for i, v := range e.Flicker(elapsed, rng) {
			if v < rng.Min || v > rng.Max {
				t.Fatalf("flicker channel %d = %d at %v, want within [%d,%d]", i, v, elapsed, rng.Min, rng.Max)
			}
		}
	}
}

func TestFlickerIsReproducibleForSeed(t *testing.T) {
	a := NewEngine(testParams())
	b := NewEngine(testParams())
	rng := Range{Min: 10, Max: 90}

	for tick := 0; tick < 100; tick++ {
		elapsed := time.Duration(tick) * 50 * time.Millisecond
		va := a.Flicker(elapsed, rng)
		vb := b.Flicker(elapsed, rng)
		for i := range va {
			if va[i] != vb[i] {
				t.Fatalf("same seed diverged at tick %d channel %d: %d vs %d", tick, i, va[i], vb[i])
			}
		}
	}
}

func TestFlickerHoldsWithinOneTick(t *testing.T) {
	e := NewEngine(testParams())
	rng := Range{Min: 10, Max: 90}

	a := e.Flicker(100*time.Millisecond, rng)
	b := e.Flicker(120*time.Millisecond, rng) // same 50ms tick bucket
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("value changed inside one resample interval: %v vs %v", a, b)
		}
	}
}

func TestFlickerSeedsDiffer(t *testing.T) {
	p := testParams()
	a := NewEngine(p)
	p.Seed = 8
	b := NewEngine(p)
	rng := Range{Min: 10, Max: 90}

	for tick := 0; tick < 100; tick++ {
		elapsed := time.Duration(tick) * 50 * time.Millisecond
		if a.Flicker(elapsed, rng)[0] != b.Flicker(elapsed, rng)[0] {
			return
		}
	}
	t.Error("two seeds produced identical sequences over 100 ticks")
}

func TestShutdownRampReachesZero(t *testing.T) {
	e := NewEngine(testParams())
	from := []int{80, 80, 80, 80}

	values, done := e.Shutdown(0, from)
	if done {
		t.Fatal("shutdown done at elapsed 0")
	}
	if values[0] != 80 {
		t.Errorf("shutdown start = %d, want 80", values[0])
	}

	values, done = e.Shutdown(500*time.Millisecond, from)
	if done || values[0] != 40 {
		t.Errorf("shutdown midpoint = %d done=%v, want 40 and not done", values[0], done)
	}

	values, done = e.Shutdown(time.Second, from)
	if !done {
		t.Error("shutdown not done at ramp duration")
	}
	for i, v := range values {
		if v != 0 {
			t.Errorf("shutdown channel %d = %d after ramp, want 0", i, v)
		}
	}
}

func TestConstantModes(t *testing.T) {
	e := NewEngine(testParams())
	for i, v := range e.Off() {
		if v != 0 {
			t.Errorf("off channel %d = %d, want 0", i, v)
		}
	}
	for i, v := range e.Steady() {
		if v != 80 {
			t.Errorf("steady channel %d = %d, want 80", i, v)
		}
	}
}
