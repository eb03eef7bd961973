package joint

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Actuator turns an absolute joint vector into robot motion. Implementations
// may be simulated.
type Actuator interface {
	Move(ctx context.Context, target Positions, velocity, acceleration float64, blocking bool) error
	Close() error
}

// SimulatedActuator logs moves instead of performing them.
type SimulatedActuator struct {
	logger *log.Logger
}

// NewSimulatedActuator returns an actuator that logs through logger, or the
// standard logger when logger is nil.
func NewSimulatedActuator(logger *log.Logger) *SimulatedActuator {
	if logger == nil {
		logger = log.Default()
	}
	return &SimulatedActuator{logger: logger}
}

// Move logs the requested target.
func (a *SimulatedActuator) Move(_ context.Context, target Positions, velocity, acceleration float64, _ bool) error {
	a.logger.Printf("[SIM] movej %s v=%.3f a=%.3f", formatPositions(target), velocity, acceleration)
	return nil
}

// Close is a no-op.
func (a *SimulatedActuator) Close() error {
	a.logger.Printf("[SIM] robot connection closed")
	return nil
}

// DefaultRobotAddr is the factory address of a UR arm's secondary
// (URScript) interface.
const DefaultRobotAddr = "192.168.1.2:30002"

// URScriptActuator drives a Universal Robots arm by writing movej commands
// to its URScript interface over TCP.
type URScriptActuator struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
	w    *bufio.Writer
}

// DialURScript connects to the robot at addr.
func DialURScript(ctx context.Context, addr string) (*URScriptActuator, error) {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to robot at %s: %w", addr, err)
	}
	log.Printf("Connected to robot at %s", addr)
	return &URScriptActuator{addr: addr, conn: conn, w: bufio.NewWriter(conn)}, nil
}

// Move sends a movej to the robot. The secondary interface does not
// acknowledge completion, so blocking moves are not supported and the call
// returns as soon as the command is written.
func (a *URScriptActuator) Move(ctx context.Context, target Positions, velocity, acceleration float64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(2 * time.Second)
	}
	if err := a.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline on %s: %w", a.addr, err)
	}

	if _, err := a.w.WriteString(MoveJScript(target, velocity, acceleration)); err != nil {
		return fmt.Errorf("write movej to %s: %w", a.addr, err)
	}
	if err := a.w.Flush(); err != nil {
		return fmt.Errorf("flush movej to %s: %w", a.addr, err)
	}
	return nil
}

// Close terminates the robot connection.
func (a *URScriptActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.conn.Close(); err != nil {
		return err
	}
	log.Printf("Robot connection closed.")
	return nil
}

// MoveJScript renders a URScript movej line for target.
func MoveJScript(target Positions, velocity, acceleration float64) string {
	joints := make([]string, len(target))
	for i, q := range target {
		joints[i] = strconv.FormatFloat(q, 'f', 6, 64)
	}
	return fmt.Sprintf("movej([%s], a=%s, v=%s)\n",
		strings.Join(joints, ","),
		strconv.FormatFloat(acceleration, 'f', -1, 64),
		strconv.FormatFloat(velocity, 'f', -1, 64))
}

func formatPositions(p Positions) string {
	parts := make([]string, len(p))
	for i, q := range p {
		parts[i] = strconv.FormatFloat(q, 'f', 3, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
