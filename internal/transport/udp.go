// Package transport owns the UDP socket to the signal controller. It decodes
// inbound datagrams into commands for the agent's queue and sends status
// replies and periodic stay-alive beacons back. It never touches LED state.
package transport

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"ledsignal-agent/internal/core"
	"ledsignal-agent/internal/proto"
)

const maxDatagram = 64

// Conn wraps the UDP socket. Receive and beacon loops run on their own
// goroutines; their only interaction with the rest of the agent is the
// command channel and the status callback.
type Conn struct {
	sock     *net.UDPConn
	commands core.CommandChannel
	status   func() proto.StatusReport

	beaconInterval time.Duration
	controllerAddr *net.UDPAddr // beacon fallback before the first datagram

	mu       sync.Mutex
	lastPeer *net.UDPAddr

	// Comms accounting, logged on close. Atomic because replies and
	// beacons are sent from different goroutines.
	rxCount        atomic.Uint64
	txCount        atomic.Uint64
	malformedCount atomic.Uint64
	droppedCount   atomic.Uint64
}

// Listen binds the UDP socket. A bind failure is fatal to the process; the
// external supervisor restarts us.
func Listen(listenAddr, controllerAddr string, beaconInterval time.Duration, commands core.CommandChannel, status func() proto.StatusReport) (*Conn, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	sock, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		sock:           sock,
		commands:       commands,
		status:         status,
		beaconInterval: beaconInterval,
	}
	if controllerAddr != "" {
		peer, err := net.ResolveUDPAddr("udp", controllerAddr)
		if err != nil {
			log.Printf("[Transport] cannot resolve controller %q, beacons wait for first datagram: %v", controllerAddr, err)
		} else {
			c.controllerAddr = peer
		}
	}

	log.Printf("[Transport] listening on %s", sock.LocalAddr())
	return c, nil
}

// Run starts the receive and beacon loops and blocks until ctx is cancelled.
func (c *Conn) Run(ctx context.Context) {
	go c.beaconLoop(ctx)

	buf := make([]byte, maxDatagram)
	for {
		n, peer, err := c.sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Socket errors are not fatal; datagram loss is expected.
			log.Printf("[Transport] read error: %v", err)
			continue
		}
		c.rxCount.Add(1)

		cmd, err := proto.Decode(buf[:n])
		if err != nil {
			c.malformedCount.Add(1)
			log.Printf("[Transport] discarding datagram from %s: %v", peer, err)
			continue
		}
		cmd.Peer = peer
		c.setLastPeer(peer)

		select {
		case c.commands <- cmd:
		default:
			c.droppedCount.Add(1)
			log.Printf("[Transport] command queue full, dropping %s from %s", cmd.Type, peer)
		}
	}
}

// LocalAddr returns the bound socket address.
func (c *Conn) LocalAddr() net.Addr {
	return c.sock.LocalAddr()
}

// Send encodes and sends a status reply. Fire and forget: UDP gives no
// delivery guarantee and the controller re-sends on silence.
func (c *Conn) Send(peer *net.UDPAddr, report proto.StatusReport) {
	if peer == nil {
		return
	}
	if _, err := c.sock.WriteToUDP(proto.EncodeStatus(report), peer); err != nil {
		log.Printf("[Transport] send to %s failed: %v", peer, err)
		return
	}
	c.txCount.Add(1)
}

// beaconLoop sends an unsolicited status report at a fixed interval so the
// controller can tell a dead unit from a quiet one.
func (c *Conn) beaconLoop(ctx context.Context) {
	if c.beaconInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.beaconInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			peer := c.beaconTarget()
			if peer == nil {
				continue
			}
			c.Send(peer, c.status())
		}
	}
}

func (c *Conn) beaconTarget() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastPeer != nil {
		return c.lastPeer
	}
	return c.controllerAddr
}

func (c *Conn) setLastPeer(peer *net.UDPAddr) {
	c.mu.Lock()
	c.lastPeer = peer
	c.mu.Unlock()
}

// Close shuts the socket and logs the comms accounting.
func (c *Conn) Close() error {
	log.Printf("[Transport] closing with stats: rx %d, tx %d, malformed %d, dropped %d",
		c.rxCount.Load(), c.txCount.Load(), c.malformedCount.Load(), c.droppedCount.Load())
	return c.sock.Close()
}
