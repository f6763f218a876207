package power

import (
	"fmt"
	"log"

	"github.com/coreos/go-systemd/v22/login1"
)

// logindPower shuts the host down through systemd-logind over D-Bus, the
// same path `systemctl poweroff` takes.
type logindPower struct{}

func (p *logindPower) PowerOff() error {
	conn, err := login1.New()
	if err != nil {
		return fmt.Errorf("failed to connect to logind: %w", err)
	}
	defer conn.Close()

	log.Println("[Power] requesting host power-off via logind")
	conn.PowerOff(false)
	return nil
}
