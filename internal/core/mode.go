package core

// Mode is the LED subsystem's current operating state.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeStartup
	ModeSteady
	ModeFlickering
	ModeShuttingDown
	ModeTerminated
)

var modeNames = map[Mode]string{
	ModeOff:          "off",
	ModeStartup:      "startup",
	ModeSteady:       "steady",
	ModeFlickering:   "flickering",
	ModeShuttingDown: "shuttingDown",
	ModeTerminated:   "terminated",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ModeByName maps a mode name back to its Mode, for schedule entries.
func ModeByName(name string) (Mode, bool) {
	for m, n := range modeNames {
		if n == name {
			return m, true
		}
	}
	return ModeOff, false
}

// ModeFromWire maps a wire mode id to a Mode. Terminated is never a valid
// request target, so it is rejected here along with out-of-range ids.
func ModeFromWire(id byte) (Mode, bool) {
	m := Mode(id)
	if m > ModeShuttingDown {
		return ModeOff, false
	}
	return m, true
}

// legalEdges lists the allowed successors of each mode. A shutdown request is
// accepted from every non-terminal mode, so ShuttingDown appears everywhere.
var legalEdges = map[Mode][]Mode{
	ModeOff:          {ModeStartup, ModeShuttingDown},
	ModeStartup:      {ModeSteady, ModeShuttingDown},
	ModeSteady:       {ModeFlickering, ModeShuttingDown},
	ModeFlickering:   {ModeSteady, ModeFlickering, ModeShuttingDown},
	ModeShuttingDown: {ModeTerminated},
	ModeTerminated:   {},
}

// CanTransition reports whether m -> to is a legal edge of the state machine.
func (m Mode) CanTransition(to Mode) bool {
	for _, next := range legalEdges[m] {
		if next == to {
			return true
		}
	}
	return false
}
