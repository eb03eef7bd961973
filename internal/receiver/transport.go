package receiver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens message connections identified by URL.
type Transport interface {
	Open(ctx context.Context, url string) (Connection, error)
}

// Connection is a duplex message stream. Receive blocks until a message
// arrives, the stream ends, or ctx is done.
type Connection interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// WebSocketTransport dials relay servers with a gorilla websocket Dialer.
type WebSocketTransport struct {
	Dialer websocket.Dialer
	Header http.Header
}

// NewWebSocketTransport returns a transport with a bounded handshake.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		Dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Open dials url.
func (t *WebSocketTransport) Open(ctx context.Context, url string) (Connection, error) {
	conn, resp, err := t.Dialer.DialContext(ctx, url, t.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConnection{conn: conn}, nil
}

type wsConnection struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Receive reads the next data frame. Cancelling ctx closes the socket,
// which unblocks the pending read.
func (c *wsConnection) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return payload, nil
}

func (c *wsConnection) Send(ctx context.Context, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConnection) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
