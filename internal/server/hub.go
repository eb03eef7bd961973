// Package server coordinates connection registration, channel fan-out, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub owns the Registry and serializes every membership change and
// broadcast through a single event loop. Because one loop performs all
// deliveries and each recipient queue is FIFO, frames from one sender reach
// each recipient in the order they were sent.
type Hub struct {
	registry   *Registry
	broadcast  chan BroadcastMessage
	register   chan *Conn
	unregister chan *Conn
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary channels
// and an empty registry. The returned Hub is ready to manage connections once
// Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register hands conn to the event loop, which adds it to its channel and
// starts its pumps. It returns false if the hub has stopped.
func (h *Hub) Register(conn *Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister asks the event loop to drop conn. Dropping an unknown or
// already removed connection is a no-op.
func (h *Hub) Unregister(conn *Conn) {
	select {
	case h.unregister <- conn:
	case <-h.ctx.Done():
	}
}

// Broadcast submits msg for fan-out to the sender's channel. It returns
// false if the hub has stopped.
func (h *Hub) Broadcast(msg BroadcastMessage) bool {
	select {
	case h.broadcast <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run starts the hub's main event loop, handling registration,
// unregistration, and message broadcasting. This method should be called in
// a separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownConns()
			return

		case conn := <-h.register:
			if conn == nil {
				log.Printf("Received nil connection registration; skipping")
				continue
			}
			h.addConn(conn)

		case conn := <-h.unregister:
			if h.removeConn(conn) {
				log.Printf("[-] %s@%s disconnected (%s). Channel size: %d",
					conn.mode, conn.channel, conn.ID, h.registry.Count(conn.channel))
			}

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

func (h *Hub) addConn(conn *Conn) {
	h.registry.Register(conn.channel, conn)
	log.Printf("[+] %s@%s connected from %s (%s). Channel size: %d",
		conn.mode, conn.channel, conn.addr, conn.ID, h.registry.Count(conn.channel))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		conn.writePump()
	}()
	go func() {
		defer h.wg.Done()
		conn.readPump()
	}()
}

// removeConn drops conn from the registry and closes its send queue. The
// queue is closed only by the call that actually removed the connection, so
// it is closed exactly once.
func (h *Hub) removeConn(conn *Conn) bool {
	if conn == nil || !h.registry.Unregister(conn.channel, conn) {
		return false
	}
	close(conn.send)
	return true
}

// handleBroadcast fans msg out and drops recipients that could not accept it.
func (h *Hub) handleBroadcast(msg BroadcastMessage) {
	results := h.deliver(msg)

	failed := 0
	for _, result := range results {
		if result.Status == Delivered {
			continue
		}
		failed++
		log.Printf("Send to %s failed (%s); removing from channel %q", result.Recipient, result.Reason, msg.Channel)
		h.removeConn(result.Recipient)
	}

	if failed > 0 {
		log.Printf("Relayed %q message on %q to %d/%d peers", msg.Type, msg.Channel, len(results)-failed, len(results))
	}
}

// deliver queues msg.Payload on every member of msg.Channel except the
// sender and reports the outcome per recipient. It never blocks on a slow
// recipient and never returns an error.
func (h *Hub) deliver(msg BroadcastMessage) []SendResult {
	members := h.registry.Members(msg.Channel)
	results := make([]SendResult, 0, len(members))

	for _, conn := range members {
		if msg.Sender != nil && conn == msg.Sender {
			continue
		}
		results = append(results, h.safeSend(conn, msg.Payload))
	}
	return results
}

func (h *Hub) safeSend(conn *Conn, payload []byte) (result SendResult) {
	result = SendResult{Recipient: conn, Status: Delivered}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend to %s: %v", conn, r)
			result.Status = Failed
			result.Reason = ReasonClosed
		}
	}()

	select {
	case conn.send <- payload:
	default:
		result.Status = Failed
		result.Reason = ReasonBufferFull
	}
	return result
}

// shutdownConns unregisters every connection and closes its socket so both
// pumps return.
func (h *Hub) shutdownConns() {
	log.Println("Shutting down all relay connections...")

	conns := h.registry.All()
	for _, conn := range conns {
		h.removeConn(conn)
		if conn.ws != nil {
			conn.closeConnection("shutdown")
		}
	}

	log.Printf("Closed %d relay connections", len(conns))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
