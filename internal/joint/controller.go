// Package joint holds the receptor's joint-position state and drives a
// motion actuator from incremental joint commands.
package joint

import (
	"context"
	"log"
	"sync"

	"github.com/Tyrowin/jointrelay/internal/protocol"
)

// NumJoints is the number of axes on the arm.
const NumJoints = 6

// Default motion parameters.
const (
	DefaultScale        = 0.01 // rad per command
	DefaultVelocity     = 0.1  // rad/s
	DefaultAcceleration = 0.5  // rad/s^2
)

// Positions is an absolute joint-angle vector in radians.
type Positions [NumJoints]float64

var jointIndex = map[string]int{
	"joint1": 0,
	"joint2": 1,
	"joint3": 2,
	"joint4": 3,
	"joint5": 4,
	"joint6": 5,
}

// JointIndex maps a wire joint name onto its index in Positions.
func JointIndex(name string) (int, bool) {
	idx, ok := jointIndex[name]
	return idx, ok
}

// Controller owns the joint-position vector. Updates are serialized so a
// controller can be shared between goroutines without losing increments.
type Controller struct {
	mu           sync.Mutex
	positions    Positions
	actuator     Actuator
	scale        float64
	velocity     float64
	acceleration float64
}

// Option customizes a Controller.
type Option func(*Controller)

// WithScale sets the angle applied per command.
func WithScale(scale float64) Option {
	return func(c *Controller) { c.scale = scale }
}

// WithMotion sets the velocity and acceleration passed to the actuator.
func WithMotion(velocity, acceleration float64) Option {
	return func(c *Controller) {
		c.velocity = velocity
		c.acceleration = acceleration
	}
}

// NewController returns a controller at the all-zero position.
func NewController(actuator Actuator, opts ...Option) *Controller {
	c := &Controller{
		actuator:     actuator,
		scale:        DefaultScale,
		velocity:     DefaultVelocity,
		acceleration: DefaultAcceleration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyUpdate moves joint name one step in the direction of action and
// commands the actuator with the full resulting vector. Unknown joints are
// ignored and reported with ok == false. Actuator failures are logged and
// never returned: a failed move must not stop later commands.
func (c *Controller) ApplyUpdate(ctx context.Context, name string, action protocol.Action) (Positions, bool) {
	idx, ok := JointIndex(name)
	if !ok {
		return c.Positions(), false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.positions[idx] += action.Delta() * c.scale
	target := c.positions

	if c.actuator != nil {
		if err := c.actuator.Move(ctx, target, c.velocity, c.acceleration, false); err != nil {
			log.Printf("Move error: %v", err)
		}
	}
	return target, true
}

// Apply dispatches a decoded joint update event.
func (c *Controller) Apply(ctx context.Context, update protocol.JointUpdate) (Positions, bool) {
	positions, ok := c.ApplyUpdate(ctx, update.Joint, update.Action)
	if ok {
		log.Printf("%s: value=%v, action=%s", update.Joint, update.Value, update.Action)
	}
	return positions, ok
}

// Positions returns a copy of the current joint vector.
func (c *Controller) Positions() Positions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions
}

// Close releases the actuator.
func (c *Controller) Close() error {
	if c.actuator == nil {
		return nil
	}
	return c.actuator.Close()
}
