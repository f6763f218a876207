// Package server exposes a read-only status websocket for site monitoring.
// Clients get the current snapshot on connect and every change after that.
// It accepts no commands; those arrive exclusively over UDP.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"ledsignal-agent/internal/core"

	"github.com/gorilla/websocket"
)

// Message is the JSON envelope pushed to monitor clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func statusMessage(snap core.Snapshot) Message {
	return Message{
		Type: "status",
		Payload: map[string]interface{}{
			"mode":      snap.Mode.String(),
			"fault":     snap.Fault,
			"intensity": snap.Aggregate(),
			"channels":  snap.Channels,
		},
	}
}

// Server manages the monitor HTTP endpoint and its websocket clients.
type Server struct {
	httpServer *http.Server
	eventBus   *core.EventBus
	stateFn    func() core.Snapshot
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer creates the monitor server.
func NewServer(eventBus *core.EventBus, stateFn func() core.Snapshot, port string, allowedOrigins []string) *Server {
	s := &Server{
		eventBus: eventBus,
		stateFn:  stateFn,
		clients:  make(map[*websocket.Conn]bool),
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			log.Printf("[Monitor] websocket blocked: origin '%s' not allowed", origin)
			return false
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux}

	return s
}

// Run serves until ctx is cancelled, broadcasting every state change.
func (s *Server) Run(ctx context.Context) {
	sub := s.eventBus.Subscribe(core.StateChangedEvent, core.ModeChangedEvent, core.FaultChangedEvent)
	go func() {
		defer s.eventBus.Unsubscribe(sub, core.StateChangedEvent, core.ModeChangedEvent, core.FaultChangedEvent)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-sub:
				s.broadcast(statusMessage(event.State))
			}
		}
	}()

	log.Printf("[Monitor] status websocket on %s/ws", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[Monitor] server error: %v", err)
	}
}

// Shutdown stops accepting connections and closes the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Monitor] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	_ = conn.WriteJSON(statusMessage(s.stateFn()))

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	log.Println("[Monitor] client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		log.Println("[Monitor] client disconnected")
	}()

	// Monitor clients are listen-only; drain until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		if err := client.WriteJSON(msg); err != nil {
			client.Close()
			delete(s.clients, client)
		}
	}
}
