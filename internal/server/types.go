// Package server defines shared broadcast and delivery result types and
// utility helpers that are reused across connection and hub logic.
package server

import "strings"

// BroadcastMessage encapsulates a frame being fanned out by the hub,
// including the originating connection so it can be excluded from delivery.
// Payload is the sender's raw frame and is forwarded unmodified.
type BroadcastMessage struct {
	Channel string
	Sender  *Conn
	Type    string
	Payload []byte
}

// SendStatus is the outcome of handing a frame to one recipient.
type SendStatus int

const (
	// Delivered means the frame was queued on the recipient's send buffer.
	Delivered SendStatus = iota
	// Failed means the frame was not queued; see SendResult.Reason.
	Failed
)

func (s SendStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SendReason is a structured failure code attached to a failed send.
type SendReason string

// Failure reasons reported by the hub.
const (
	ReasonNone       SendReason = ""
	ReasonBufferFull SendReason = "buffer_full"
	ReasonClosed     SendReason = "closed"
)

// SendResult reports what happened to one recipient during a broadcast.
type SendResult struct {
	Recipient *Conn
	Status    SendStatus
	Reason    SendReason
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
