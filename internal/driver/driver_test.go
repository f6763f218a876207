package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func makeLedTree(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name, "brightness"), []byte("0"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readBrightness(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name, "brightness"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfsWritesScaledBrightness(t *testing.T) {
	dir := makeLedTree(t, "sig0", "sig1")
	d := newSysfs(context.Background(), dir, []string{"sig0", "sig1"}, 255, 1000, 100)

	if err := d.SetIntensity(0, 100); err != nil {
		t.Fatalf("SetIntensity: %v", err)
	}
	if err := d.SetIntensity(1, 50); err != nil {
		t.Fatalf("SetIntensity: %v", err)
	}

	if got := readBrightness(t, dir, "sig0"); got != "255" {
		t.Errorf("sig0 brightness = %s, want 255", got)
	}
	if got := readBrightness(t, dir, "sig1"); got != "127" {
		t.Errorf("sig1 brightness = %s, want 127", got)
	}
}

func TestSysfsClampsAndValidatesChannel(t *testing.T) {
	dir := makeLedTree(t, "sig0")
	d := newSysfs(context.Background(), dir, []string{"sig0"}, 255, 1000, 100)

	if err := d.SetIntensity(0, 150); err != nil {
		t.Fatalf("SetIntensity: %v", err)
	}
	if got := readBrightness(t, dir, "sig0"); got != "255" {
		t.Errorf("over-scale write gave %s, want clamped 255", got)
	}

	if err := d.SetIntensity(3, 10); err == nil {
		t.Error("out-of-range channel accepted")
	}
}

func TestSysfsFaultWhenLedVanishes(t *testing.T) {
	dir := makeLedTree(t, "sig0", "sig1")
	d := newSysfs(context.Background(), dir, []string{"sig0", "sig1"}, 255, 1000, 100)

	if d.ReadFault() {
		t.Fatal("fault reported with all LEDs present")
	}
	if err := os.RemoveAll(filepath.Join(dir, "sig1")); err != nil {
		t.Fatal(err)
	}
	if !d.ReadFault() {
		t.Error("no fault reported after an LED vanished")
	}
}

func TestSysfsCloseDarkensChannels(t *testing.T) {
	dir := makeLedTree(t, "sig0")
	d := newSysfs(context.Background(), dir, []string{"sig0"}, 255, 1000, 100)

	if err := d.SetIntensity(0, 80); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readBrightness(t, dir, "sig0"); got != "0" {
		t.Errorf("brightness after close = %s, want 0", got)
	}
}

func TestFactoryFallsBackToNoop(t *testing.T) {
	d, acquired := New(context.Background(), Config{
		SysfsDir:      t.TempDir(),
		Leds:          []string{"missing_led"},
		MaxBrightness: 255,
		RateLimit:     1000,
		RateBurst:     100,
	})
	if acquired {
		t.Error("factory claimed acquisition for a missing LED")
	}
	if err := d.SetIntensity(0, 50); err != nil {
		t.Errorf("noop driver returned error: %v", err)
	}
}

func TestFactoryUsesSysfsWhenPresent(t *testing.T) {
	dir := makeLedTree(t, "sig0")
	_, acquired := New(context.Background(), Config{
		SysfsDir:      dir,
		Leds:          []string{"sig0"},
		MaxBrightness: 255,
		RateLimit:     1000,
		RateBurst:     100,
	})
	if !acquired {
		t.Error("factory fell back to noop with the LED present")
	}
}

// togglingDriver flips into fault after a set number of polls.
type togglingDriver struct {
	polls      int
	faultAfter int
}

func (d *togglingDriver) SetIntensity(channel, value int) error { return nil }
func (d *togglingDriver) Close() error                          { return nil }
func (d *togglingDriver) ReadFault() bool {
	d.polls++
	return d.polls > d.faultAfter
}

func TestWatchSignalsFaultEdge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	faults := Watch(ctx, &togglingDriver{faultAfter: 2}, 10*time.Millisecond)

	select {
	case <-faults:
	case <-time.After(2 * time.Second):
		t.Fatal("fault edge never signalled")
	}

	// The fault stays asserted; no second edge should arrive.
	select {
	case <-faults:
		t.Error("level-triggered signal; want edge-triggered")
	case <-time.After(100 * time.Millisecond):
	}
}
