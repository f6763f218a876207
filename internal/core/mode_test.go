package core

import "testing"

func TestLegalTransitions(t *testing.T) {
	allModes := []Mode{ModeOff, ModeStartup, ModeSteady, ModeFlickering, ModeShuttingDown, ModeTerminated}

	legal := map[Mode][]Mode{
		ModeOff:          {ModeStartup, ModeShuttingDown},
		ModeStartup:      {ModeSteady, ModeShuttingDown},
		ModeSteady:       {ModeFlickering, ModeShuttingDown},
		ModeFlickering:   {ModeSteady, ModeFlickering, ModeShuttingDown},
		ModeShuttingDown: {ModeTerminated},
		ModeTerminated:   {},
	}

	for _, from := range allModes {
		allowed := map[Mode]bool{}
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for _, to := range allModes {
			if got := from.CanTransition(to); got != allowed[to] {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestModeFromWire(t *testing.T) {
	for id := byte(0); id <= 4; id++ {
		mode, ok := ModeFromWire(id)
		if !ok || Mode(id) != mode {
			t.Errorf("ModeFromWire(%d) = %s, %v", id, mode, ok)
		}
	}
	// Terminated and beyond are never valid request targets.
	for _, id := range []byte{5, 6, 255} {
		if _, ok := ModeFromWire(id); ok {
			t.Errorf("ModeFromWire(%d) accepted", id)
		}
	}
}

func TestModeByName(t *testing.T) {
	for _, mode := range []Mode{ModeOff, ModeStartup, ModeSteady, ModeFlickering, ModeShuttingDown, ModeTerminated} {
		got, ok := ModeByName(mode.String())
		if !ok || got != mode {
			t.Errorf("ModeByName(%q) = %s, %v", mode.String(), got, ok)
		}
	}
	if _, ok := ModeByName("disco"); ok {
		t.Error("ModeByName accepted an unknown name")
	}
}

func TestSnapshotAggregate(t *testing.T) {
	s := NewState(4)
	s.SetChannels([]int{100, 0, 50, 50})
	if got := s.Clone().Aggregate(); got != 50 {
		t.Errorf("Aggregate = %d, want 50", got)
	}
	empty := Snapshot{}
	if empty.Aggregate() != 0 {
		t.Error("empty snapshot aggregate should be 0")
	}
}

func TestCloneIsDetached(t *testing.T) {
	s := NewState(2)
	s.SetChannels([]int{10, 20})
	snap := s.Clone()
	s.SetChannels([]int{30, 40})
	if snap.Channels[0] != 10 || snap.Channels[1] != 20 {
		t.Errorf("snapshot mutated by later writes: %v", snap.Channels)
	}
}
