// Package server manages individual relay connections, handling read/write
// pumps, rate limiting, and lifecycle control for each peer.
package server

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/jointrelay/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Conn represents one peer attached to a channel. Its channel and mode are
// fixed when the connection is accepted.
type Conn struct {
	ID             string
	ws             *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	channel        string
	mode           string
	maxMessageSize int64
	budget         *frameBudget
}

// NewConn creates a Conn for an upgraded websocket. ws may be nil in tests
// that exercise the hub without a network.
func NewConn(ws *websocket.Conn, hub *Hub, addr, channel, mode string, cfg Config) *Conn {
	cfg = cfg.Sanitize()
	if ws != nil {
		ws.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Conn{
		ID:             uuid.NewString(),
		ws:             ws,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		channel:        channel,
		mode:           mode,
		maxMessageSize: cfg.MaxMessageSize,
		budget:         newFrameBudget(cfg.RateLimit),
	}
}

// Channel returns the channel the connection joined.
func (c *Conn) Channel() string { return c.channel }

// Mode returns the advisory role announced by the peer.
func (c *Conn) Mode() string { return c.mode }

// Addr returns the peer's remote address.
func (c *Conn) Addr() string { return c.addr }

// GetSendChan returns the connection's outbound queue for reading.
func (c *Conn) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Conn) String() string {
	return c.mode + "@" + c.channel + " (" + c.ID + ")"
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Conn) setupReadConnection() {
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c, err)
	}
	c.ws.SetPongHandler(func(string) error {
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c, err)
		}
		return nil
	})
}

// logReadError logs the reason the read loop is ending.
func (c *Conn) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Peer %s closed the connection: %v", c, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Connection %s closed: %v", c, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c, err)
	}
}

// checkRateLimit verifies if the connection has exceeded rate limits
// and returns true if the message should be processed
func (c *Conn) checkRateLimit() bool {
	if !c.budget.admit() {
		log.Printf("Rate limit exceeded for %s (%s); discarding message", c, c.budget)
		return false
	}
	return true
}

// processMessage checks that a raw frame is a JSON object and hands it to
// the hub unmodified. Only the envelope is inspected, so message types the
// relay does not know are forwarded too. Malformed frames are dropped
// without affecting the connection.
func (c *Conn) processMessage(raw []byte) bool {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		log.Printf("Dropping message from %s: %v", c, err)
		return false
	}

	return c.hub.Broadcast(BroadcastMessage{Channel: c.channel, Sender: c, Type: env.Type, Payload: raw})
}

// readPump runs the connection's message loop. Unregistration is deferred so
// it happens on every exit path.
func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConnection("readPump")
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(raw)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection("writePump")
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Conn) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Conn) closeConnection(where string) {
	if err := c.ws.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in %s: %v", where, err)
		}
	}
}

// handleMessage writes one queued frame and returns false if the connection should be closed
func (c *Conn) handleMessage(message []byte, ok bool) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the peer
func (c *Conn) writeCloseMessage() bool {
	if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c, err)
		}
	}
	return false
}

// writeTextMessage writes message as its own frame. Frames are never
// coalesced so every recipient sees the sender's exact payload.
func (c *Conn) writeTextMessage(message []byte) bool {
	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Printf("Error writing message to %s: %v", c, err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Conn) handlePing() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c, err)
		return false
	}
	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c, err)
		return false
	}
	return true
}
