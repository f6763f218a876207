package core

import (
	"net"
	"time"
)

// CommandType defines the type of command being dispatched to the Agent.
type CommandType string

const (
	CmdPing     CommandType = "ping"
	CmdSetMode  CommandType = "setMode"
	CmdFlicker  CommandType = "flicker"
	CmdShutdown CommandType = "shutdown"
	CmdQuery    CommandType = "queryStatus"
)

// Command is the envelope for decoded controller requests. Only the decoder
// and the scheduler construct Commands; fields beyond Type are meaningful
// only for the command types that carry them.
type Command struct {
	Type CommandType

	// CmdSetMode
	Mode Mode

	// CmdFlicker
	Duration time.Duration
	MinLevel int
	MaxLevel int

	// Reply address. Nil for internally generated commands (scheduler),
	// which get no wire reply.
	Peer *net.UDPAddr
}

// CommandChannel is the single channel the core Agent listens to for commands.
type CommandChannel chan Command
