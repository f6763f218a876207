// Package driver is the capability boundary to the LED hardware. The agent
// only ever talks to the Driver interface; behind it sits either the sysfs
// implementation or a no-op fallback for hosts without the LED array.
package driver

// Driver sets per-channel brightness and reports hardware fault status.
type Driver interface {
	// SetIntensity sets one channel to a 0-100 intensity.
	SetIntensity(channel, value int) error

	// ReadFault reports whether the hardware is currently faulted.
	ReadFault() bool

	// Close releases the hardware, leaving all channels dark.
	Close() error
}
