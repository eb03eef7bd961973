// Package testhelpers provides common utilities and helper functions for
// testing the relay server and receptor client.
//
// It provides functions for starting relays under httptest, dialing them as
// controllers or receptors, and asserting on the frames that arrive, to
// reduce code duplication in test files.
package testhelpers

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/jointrelay/internal/protocol"
	"github.com/Tyrowin/jointrelay/internal/server"
)

// StartRelay starts a relay with cfg (nil for defaults) behind an httptest
// server. Both are shut down when the test ends.
func StartRelay(t *testing.T, cfg *server.Config) (*server.Relay, *httptest.Server) {
	t.Helper()

	relay := server.NewRelay(cfg)
	relay.Start()
	testServer := CreateTestServer(relay.Routes())

	t.Cleanup(func() {
		testServer.Close()
		if err := relay.Shutdown(2 * time.Second); err != nil {
			t.Logf("Relay shutdown: %v", err)
		}
	})
	return relay, testServer
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// WebSocketURL converts an httptest server URL into its ws:// form.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectPeer dials wsURL on channel with the given mode and closes the
// connection when the test ends.
func ConnectPeer(t *testing.T, wsURL, channel, mode string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	conn, resp, err := dialer.Dial(wsURL+"?channel="+channel+"&mode="+mode, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect %s@%s: %v", mode, channel, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// WaitForMembers polls the relay until channel has want members.
func WaitForMembers(t *testing.T, relay *server.Relay, channel string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(relay.Hub().Registry().Members(channel)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Channel %q did not reach %d members (have %d)", channel, want,
		len(relay.Hub().Registry().Members(channel)))
}

// SendJointUpdate sends a joint_update frame and returns the exact bytes sent.
func SendJointUpdate(t *testing.T, conn *websocket.Conn, joint string, value float64, action protocol.Action) []byte {
	t.Helper()

	raw, err := protocol.Encode(protocol.NewJointUpdate(joint, value, action))
	if err != nil {
		t.Fatalf("Failed to encode joint update: %v", err)
	}
	SendRaw(t, conn, raw)
	return raw
}

// SendRaw writes payload as a text frame.
func SendRaw(t *testing.T, conn *websocket.Conn, payload []byte) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

// ReceiveRaw reads the next frame within timeout.
func ReceiveRaw(t *testing.T, conn *websocket.Conn, timeout time.Duration) []byte {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to receive message: %v", err)
	}
	return payload
}

// ExpectNoMessage fails the test if a frame arrives within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %s", payload)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
