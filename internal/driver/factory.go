package driver

import (
	"context"
	"log"
	"os"
)

// Config describes the LED hardware attachment.
type Config struct {
	SysfsDir      string   // usually /sys/class/leds
	Leds          []string // sysfs LED names, index order = channel order
	MaxBrightness int      // raw value that intensity 100 maps to
	RateLimit     float64  // brightness writes per second
	RateBurst     int
}

// New returns the sysfs driver when the configured LEDs are present, and the
// no-op fallback otherwise. The returned bool is false when running no-op,
// so callers can tell a real acquisition from a fallback.
func New(ctx context.Context, cfg Config) (Driver, bool) {
	if len(cfg.Leds) == 0 {
		log.Println("[Driver] no LEDs configured, using no-op driver")
		return newNoop(), false
	}
	for _, led := range cfg.Leds {
		if _, err := os.Stat(cfg.SysfsDir + "/" + led); err != nil {
			log.Printf("[Driver] LED %q not found under %s, using no-op driver", led, cfg.SysfsDir)
			return newNoop(), false
		}
	}
	log.Printf("[Driver] sysfs driver ready with %d channels under %s", len(cfg.Leds), cfg.SysfsDir)
	return newSysfs(ctx, cfg.SysfsDir, cfg.Leds, cfg.MaxBrightness, cfg.RateLimit, cfg.RateBurst), true
}
