// Package power is the capability boundary for the host power-off action.
package power

import "log"

// Interface requests an orderly shutdown of the host. Best effort: a failed
// request is logged by the caller, which proceeds to its terminal state
// anyway since nothing meaningful can follow a failed power-off.
type Interface interface {
	PowerOff() error
}

// New selects an implementation by name. Anything other than "systemd"
// yields the no-op, which only logs. Development hosts run no-op.
func New(mode string) Interface {
	if mode == "systemd" {
		return &logindPower{}
	}
	log.Printf("[Power] using no-op power interface (mode %q)", mode)
	return &noopPower{}
}

type noopPower struct{}

func (n *noopPower) PowerOff() error {
	log.Println("[Power] power-off requested (no-op)")
	return nil
}
