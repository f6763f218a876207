package driver

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/time/rate"
)

// sysfsDriver drives LEDs through the Linux sysfs brightness files. Writes
// are paced with a rate limiter so a fast effect tick cannot flood the
// kernel interface.
type sysfsDriver struct {
	ctx     context.Context
	baseDir string
	leds    []string // index = channel
	maxRaw  int      // hardware brightness ceiling, intensity 100 maps here
	limiter *rate.Limiter
}

func newSysfs(ctx context.Context, baseDir string, leds []string, maxRaw int, limit float64, burst int) *sysfsDriver {
	return &sysfsDriver{
		ctx:     ctx,
		baseDir: baseDir,
		leds:    leds,
		maxRaw:  maxRaw,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}
}

func (d *sysfsDriver) SetIntensity(channel, value int) error {
	if channel < 0 || channel >= len(d.leds) {
		return fmt.Errorf("channel %d out of range (have %d)", channel, len(d.leds))
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	if err := d.limiter.Wait(d.ctx); err != nil {
		return fmt.Errorf("brightness write aborted: %w", err)
	}

	raw := value * d.maxRaw / 100
	path := filepath.Join(d.baseDir, d.leds[channel], "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(raw)), 0644); err != nil {
		return fmt.Errorf("failed to set brightness on %q: %w", d.leds[channel], err)
	}
	return nil
}

// ReadFault reports a fault when any LED directory has vanished, which is
// what a detached or failed interface board looks like through sysfs.
func (d *sysfsDriver) ReadFault() bool {
	for _, led := range d.leds {
		if _, err := os.Stat(filepath.Join(d.baseDir, led)); err != nil {
			return true
		}
	}
	return false
}

func (d *sysfsDriver) Close() error {
	var firstErr error
	for channel := range d.leds {
		path := filepath.Join(d.baseDir, d.leds[channel], "brightness")
		if err := os.WriteFile(path, []byte("0"), 0644); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		log.Printf("[Driver] Close left channels lit: %v", firstErr)
	}
	return firstErr
}
