// Package receiver implements the robot-side receptor: a client that stays
// connected to a relay channel, reconnecting after every failure, and turns
// joint_update commands into actuator moves.
package receiver

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/Tyrowin/jointrelay/internal/joint"
	"github.com/Tyrowin/jointrelay/internal/protocol"
)

// State is a phase of the client's connection lifecycle.
type State int32

// Connection lifecycle phases.
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// JointController receives decoded joint updates.
type JointController interface {
	Apply(ctx context.Context, update protocol.JointUpdate) (joint.Positions, bool)
	Close() error
}

// Client is a receptor connection to one relay channel.
type Client struct {
	url        string
	transport  Transport
	controller JointController
	backoff    backoff.BackOff
	onState    func(State)
	state      atomic.Int32
}

// Option customizes a Client.
type Option func(*Client)

// WithBackOff replaces the reconnect policy. The default waits the
// configured reconnect delay between every attempt.
func WithBackOff(b backoff.BackOff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithStateHook registers fn to be called on every state transition, from
// the goroutine running Run.
func WithStateHook(fn func(State)) Option {
	return func(c *Client) { c.onState = fn }
}

// New creates a client for cfg.ServerURL joined to cfg.Channel as a receptor.
func New(cfg Config, transport Transport, controller JointController, opts ...Option) *Client {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	c := &Client{
		url:        ReceptorURL(cfg.ServerURL, channel),
		transport:  transport,
		controller: controller,
		backoff:    backoff.NewConstantBackOff(delay),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReceptorURL appends the channel and receptor mode to serverURL.
func ReceptorURL(serverURL, channel string) string {
	separator := "?"
	if strings.Contains(serverURL, "?") {
		separator = "&"
	}
	return serverURL + separator + "channel=" + channel + "&mode=receptor"
}

// URL returns the full URL the client dials.
func (c *Client) URL() string {
	return c.url
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	if c.onState != nil {
		c.onState(s)
	}
}

// Run connects, processes commands, and reconnects after every failure
// until ctx is cancelled. It always releases the controller before
// returning, and only returns ctx's error.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		if err := c.controller.Close(); err != nil {
			log.Printf("Error releasing robot connection: %v", err)
		}
	}()

	log.Printf("Connecting to %s as RECEPTOR", c.url)

	for {
		c.setState(Connecting)
		conn, err := c.transport.Open(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(Disconnected)
				return ctx.Err()
			}
			log.Printf("Connection error: %v", err)
		} else {
			c.setState(Connected)
			c.backoff.Reset()
			log.Printf("Connected! Waiting for commands...")

			err = c.receive(ctx, conn)
			if closeErr := conn.Close(); closeErr != nil && !isClosedError(closeErr) {
				log.Printf("Error closing relay connection: %v", closeErr)
			}
			if ctx.Err() != nil {
				c.setState(Disconnected)
				return ctx.Err()
			}
			log.Printf("Connection lost: %v", err)
		}

		c.setState(Disconnected)
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// wait suspends for the next backoff interval or until ctx is done.
func (c *Client) wait(ctx context.Context) error {
	delay := c.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = DefaultReconnectDelay
	}
	log.Printf("Reconnecting in %s...", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receive processes inbound messages until the stream ends.
func (c *Client) receive(ctx context.Context, conn Connection) error {
	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		c.handleMessage(ctx, raw)
	}
}

// handleMessage decodes raw and dispatches joint updates. Other message
// types are ignored whatever their fields look like; malformed frames and
// joint updates with invalid fields are dropped.
func (c *Client) handleMessage(ctx context.Context, raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		log.Printf("Dropping message: %v", err)
		return
	}
	if env.Type != protocol.TypeJointUpdate {
		return
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("Dropping joint update: %v", err)
		return
	}

	update, err := msg.JointUpdate()
	switch {
	case errors.Is(err, protocol.ErrNotJointUpdate):
		return
	case err != nil:
		log.Printf("Ignoring joint update: %v", err)
		return
	}

	c.controller.Apply(ctx, update)
}

func isClosedError(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
