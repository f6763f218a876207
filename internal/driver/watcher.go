package driver

import (
	"context"
	"time"
)

// Watch polls the driver's fault status until ctx is cancelled and delivers
// a signal on the returned channel for every clear->fault edge. The channel
// is buffered so a slow consumer never blocks the poller.
func Watch(ctx context.Context, d Driver, interval time.Duration) <-chan struct{} {
	faults := make(chan struct{}, 1)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		wasFaulted := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				faulted := d.ReadFault()
				if faulted && !wasFaulted {
					select {
					case faults <- struct{}{}:
					default:
					}
				}
				wasFaulted = faulted
			}
		}
	}()

	return faults
}
