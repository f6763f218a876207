package driver

import "log"

// noopDriver stands in on hosts without the LED array so the agent can run
// on a development machine.
type noopDriver struct{}

func newNoop() *noopDriver {
	return &noopDriver{}
}

func (n *noopDriver) SetIntensity(channel, value int) error {
	return nil
}

func (n *noopDriver) ReadFault() bool {
	return false
}

func (n *noopDriver) Close() error {
	log.Println("[Driver] noop driver closed")
	return nil
}
