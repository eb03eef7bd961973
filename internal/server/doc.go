// Package server implements the joint-command relay.
//
// Peers connect over WebSocket with a query string naming a channel and an
// advisory mode ("controller" or "receptor"). Every valid command frame a
// peer sends is forwarded, byte for byte, to every other peer on the same
// channel. The implementation is organized into specialized files for
// configuration, the connection registry, hub fan-out, per-connection
// pumps, routing, and HTTP handlers.
package server
