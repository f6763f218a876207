package core

import (
	"sync"
	"time"
)

// State holds the single source of truth for the LED subsystem. The Agent is
// its only writer; every other component reads point-in-time snapshots.
type State struct {
	mu           sync.RWMutex
	mode         Mode
	channels     []int
	fault        bool
	transitionAt time.Time
}

// Snapshot is a copy of State safe to hand to concurrent readers.
type Snapshot struct {
	Mode         Mode
	Channels     []int
	Fault        bool
	TransitionAt time.Time
}

// Aggregate returns the mean channel intensity, used in status replies.
func (s Snapshot) Aggregate() int {
	if len(s.Channels) == 0 {
		return 0
	}
	sum := 0
	for _, v := range s.Channels {
		sum += v
	}
	return sum / len(s.Channels)
}

// NewState creates a State with the given channel count, all channels off.
func NewState(channels int) *State {
	return &State{
		mode:     ModeOff,
		channels: make([]int, channels),
	}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channels := make([]int, len(s.channels))
	copy(channels, s.channels)
	return Snapshot{
		Mode:         s.mode,
		Channels:     channels,
		Fault:        s.fault,
		TransitionAt: s.transitionAt,
	}
}

// SetMode records a mode transition and its timestamp.
func (s *State) SetMode(mode Mode, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.transitionAt = at
}

// Mode returns the current mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetChannels overwrites the recorded per-channel intensities.
func (s *State) SetChannels(values []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.channels, values)
}

// SetFault updates the hardware fault flag.
func (s *State) SetFault(fault bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault
}

// Fault returns the hardware fault flag.
func (s *State) Fault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}
