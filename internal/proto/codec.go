// Package proto implements the fixed-width UDP wire format spoken by the
// signal controller. Decoding is pure: untrusted bytes in, a typed command
// or ErrMalformed out, no side effects.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"ledsignal-agent/internal/core"
)

// Request opcodes.
const (
	OpPing     byte = 0
	OpSetMode  byte = 1
	OpFlicker  byte = 2
	OpShutdown byte = 3
	OpQuery    byte = 4
)

// Reply status codes.
const (
	StatusOK                byte = 0
	StatusInvalidTransition byte = 1
	StatusTerminal          byte = 2
)

// MaxIntensity is the top of the per-channel intensity scale.
const MaxIntensity = 100

// ErrMalformed marks a datagram that does not match the wire layout. The
// transport logs and discards these; they are never fatal.
var ErrMalformed = errors.New("malformed datagram")

// Decode parses a raw datagram into a Command. The reply address is filled
// in by the transport, not here.
func Decode(data []byte) (core.Command, error) {
	if len(data) == 0 {
		return core.Command{}, fmt.Errorf("%w: empty", ErrMalformed)
	}

	opcode := data[0]
	payload := data[1:]

	switch opcode {
	case OpPing:
		if len(payload) != 0 {
			return core.Command{}, fmt.Errorf("%w: ping carries %d payload bytes", ErrMalformed, len(payload))
		}
		return core.Command{Type: core.CmdPing}, nil

	case OpSetMode:
		if len(payload) != 1 {
			return core.Command{}, fmt.Errorf("%w: setMode wants 1 payload byte, got %d", ErrMalformed, len(payload))
		}
		mode, ok := core.ModeFromWire(payload[0])
		if !ok {
			return core.Command{}, fmt.Errorf("%w: mode id %d", ErrMalformed, payload[0])
		}
		return core.Command{Type: core.CmdSetMode, Mode: mode}, nil

	case OpFlicker:
		if len(payload) != 4 {
			return core.Command{}, fmt.Errorf("%w: flicker wants 4 payload bytes, got %d", ErrMalformed, len(payload))
		}
		durationMs := binary.BigEndian.Uint16(payload[0:2])
		minLevel := int(payload[2])
		maxLevel := int(payload[3])
		if minLevel > maxLevel || maxLevel > MaxIntensity {
			return core.Command{}, fmt.Errorf("%w: flicker range [%d,%d]", ErrMalformed, minLevel, maxLevel)
		}
		return core.Command{
			Type:     core.CmdFlicker,
			Duration: time.Duration(durationMs) * time.Millisecond,
			MinLevel: minLevel,
			MaxLevel: maxLevel,
		}, nil

	case OpShutdown:
		if len(payload) != 0 {
			return core.Command{}, fmt.Errorf("%w: shutdown carries %d payload bytes", ErrMalformed, len(payload))
		}
		return core.Command{Type: core.CmdShutdown}, nil

	case OpQuery:
		if len(payload) != 0 {
			return core.Command{}, fmt.Errorf("%w: query carries %d payload bytes", ErrMalformed, len(payload))
		}
		return core.Command{Type: core.CmdQuery}, nil

	default:
		return core.Command{}, fmt.Errorf("%w: opcode %d", ErrMalformed, opcode)
	}
}

// OpcodeFor returns the request opcode echoed in replies to the given
// command type.
func OpcodeFor(t core.CommandType) byte {
	switch t {
	case core.CmdPing:
		return OpPing
	case core.CmdSetMode:
		return OpSetMode
	case core.CmdFlicker:
		return OpFlicker
	case core.CmdShutdown:
		return OpShutdown
	default:
		return OpQuery
	}
}

// StatusReport is the outbound reply: opcode echo, status, mode, fault flag
// and aggregate intensity, one byte each.
type StatusReport struct {
	Opcode    byte
	Status    byte
	Mode      core.Mode
	Fault     bool
	Intensity int
}

// EncodeStatus serializes a StatusReport for the wire.
func EncodeStatus(r StatusReport) []byte {
	fault := byte(0)
	if r.Fault {
		fault = 1
	}
	intensity := r.Intensity
	if intensity < 0 {
		intensity = 0
	}
	if intensity > MaxIntensity {
		intensity = MaxIntensity
	}
	return []byte{r.Opcode, r.Status, byte(r.Mode), fault, byte(intensity)}
}
