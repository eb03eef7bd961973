// Package server wires the relay's hub, upgrader, and configuration together
// behind the Relay type.
package server

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Relay is one relay server instance. All state lives here so several
// relays can run side by side in a test process.
type Relay struct {
	cfg      Config
	hub      *Hub
	origins  originPolicy
	upgrader websocket.Upgrader
}

// NewRelay builds a relay from cfg. A nil cfg selects the defaults.
func NewRelay(cfg *Config) *Relay {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := cfg.Sanitize()

	relay := &Relay{
		cfg:     sanitized,
		hub:     NewHub(),
		origins: newOriginPolicy(sanitized.AllowedOrigins),
	}
	relay.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     relay.origins.checkOrigin,
	}
	return relay
}

// Config returns the sanitized configuration the relay runs with.
func (s *Relay) Config() Config {
	return s.cfg
}

// Hub returns the relay's hub.
func (s *Relay) Hub() *Hub {
	return s.hub
}

// Start launches the hub event loop. It must be called before serving.
func (s *Relay) Start() {
	go s.hub.Run()
	log.Println("Hub started and ready to relay joint commands")
}

// Shutdown stops the hub and closes every relay connection.
func (s *Relay) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}
