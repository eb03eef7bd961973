package joint

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/jointrelay/internal/protocol"
)

type recordingActuator struct {
	mu     sync.Mutex
	moves  []Positions
	err    error
	closed bool
}

func (a *recordingActuator) Move(_ context.Context, target Positions, _, _ float64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moves = append(a.moves, target)
	return a.err
}

func (a *recordingActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *recordingActuator) Moves() []Positions {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Positions(nil), a.moves...)
}

func TestJointIndex(t *testing.T) {
	for i := 0; i < NumJoints; i++ {
		name := "joint" + string(rune('1'+i))
		idx, ok := JointIndex(name)
		if !ok || idx != i {
			t.Errorf("JointIndex(%q) = %d, %v; want %d, true", name, idx, ok, i)
		}
	}
	for _, name := range []string{"joint0", "joint7", "joint9", "Joint1", ""} {
		if _, ok := JointIndex(name); ok {
			t.Errorf("JointIndex(%q) unexpectedly succeeded", name)
		}
	}
}

// TestApplyUpdateDirection verifies a single step from zero in each direction.
func TestApplyUpdateDirection(t *testing.T) {
	tests := []struct {
		action protocol.Action
		want   float64
	}{
		{protocol.ActionIncrease, DefaultScale},
		{protocol.ActionDecrease, -DefaultScale},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			ctrl := NewController(&recordingActuator{})
			positions, ok := ctrl.ApplyUpdate(context.Background(), "joint3", tt.action)
			if !ok {
				t.Fatal("Expected joint3 to be accepted")
			}
			if positions[2] != tt.want {
				t.Errorf("Expected position[2] == %v, got %v", tt.want, positions[2])
			}
			for i, q := range positions {
				if i != 2 && q != 0 {
					t.Errorf("Expected position[%d] to stay 0, got %v", i, q)
				}
			}
		})
	}
}

func TestApplyUpdateUnknownJoint(t *testing.T) {
	actuator := &recordingActuator{}
	ctrl := NewController(actuator)

	if _, ok := ctrl.ApplyUpdate(context.Background(), "joint9", protocol.ActionIncrease); ok {
		t.Error("Expected joint9 to be rejected")
	}
	if got := ctrl.Positions(); got != (Positions{}) {
		t.Errorf("Expected unchanged positions, got %v", got)
	}
	if len(actuator.Moves()) != 0 {
		t.Error("Expected no actuator call for an unknown joint")
	}
}

func TestApplyUpdateSendsFullVector(t *testing.T) {
	actuator := &recordingActuator{}
	ctrl := NewController(actuator)
	ctx := context.Background()

	ctrl.ApplyUpdate(ctx, "joint1", protocol.ActionIncrease)
	ctrl.ApplyUpdate(ctx, "joint6", protocol.ActionDecrease)

	moves := actuator.Moves()
	if len(moves) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(moves))
	}
	want := Positions{0.01, 0, 0, 0, 0, -0.01}
	if moves[1] != want {
		t.Errorf("Expected %v, got %v", want, moves[1])
	}
}

// TestActuatorFailureIsSwallowed verifies a failing actuator does not stop
// later commands from updating the state.
func TestActuatorFailureIsSwallowed(t *testing.T) {
	actuator := &recordingActuator{err: errors.New("protective stop")}
	ctrl := NewController(actuator)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, ok := ctrl.ApplyUpdate(ctx, "joint2", protocol.ActionIncrease); !ok {
			t.Fatal("Expected update to be applied despite actuator error")
		}
	}

	if len(actuator.Moves()) != 3 {
		t.Errorf("Expected 3 actuator calls, got %d", len(actuator.Moves()))
	}
	if got := ctrl.Positions()[1]; got < 0.0299 || got > 0.0301 {
		t.Errorf("Expected position[1] ~= 0.03, got %v", got)
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	ctrl := NewController(nil, WithScale(1))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.ApplyUpdate(ctx, "joint4", protocol.ActionIncrease)
		}()
	}
	wg.Wait()

	if got := ctrl.Positions()[3]; got != 50 {
		t.Errorf("Expected 50 increments, got %v", got)
	}
}

func TestCloseReleasesActuator(t *testing.T) {
	actuator := &recordingActuator{}
	if err := NewController(actuator).Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !actuator.closed {
		t.Error("Expected actuator to be closed")
	}
}

func TestMoveJScript(t *testing.T) {
	got := MoveJScript(Positions{0.01, 0, 0, 0, 0, -0.5}, 0.1, 0.5)
	want := "movej([0.010000,0.000000,0.000000,0.000000,0.000000,-0.500000], a=0.5, v=0.1)\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// TestURScriptActuatorWritesMoves runs the actuator against a local TCP
// listener standing in for the robot.
func TestURScriptActuatorWritesMoves(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	lines := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		lines <- line
	}()

	actuator, err := DialURScript(context.Background(), listener.Addr().String())
	if err != nil {
		t.Fatalf("DialURScript failed: %v", err)
	}
	defer actuator.Close()

	target := Positions{0.01}
	if err := actuator.Move(context.Background(), target, DefaultVelocity, DefaultAcceleration, false); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	select {
	case line := <-lines:
		if !strings.HasPrefix(line, "movej([0.010000,") {
			t.Errorf("Unexpected script line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Robot listener did not receive a command")
	}
}

func TestDialURScriptFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	if _, err := DialURScript(context.Background(), addr); err == nil {
		t.Error("Expected dial to a closed port to fail")
	}
}
