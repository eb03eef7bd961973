// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all relay routes.
// The root path accepts websocket upgrades as well as health checks because
// robot clients connect to the bare server URL.
func (s *Relay) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.RootHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/channels", s.ChannelsHandler)
	mux.HandleFunc("/control", ControlPageHandler)
	return mux
}
