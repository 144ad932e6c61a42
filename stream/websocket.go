package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsMaxMessageSize = 1 << 20 // 1 MiB
)

// WebSocketTransport connects to a WebSocket push endpoint. The server is
// expected to send JSON frames shaped like Message; protocol-level pings
// double as heartbeats and refresh the read deadline.
type WebSocketTransport struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

// WebSocketOption configures a WebSocketTransport.
type WebSocketOption func(*WebSocketTransport)

// WithHeader sets headers sent on the handshake, typically authorization.
func WithHeader(header http.Header) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.header = header
	}
}

// WithDialer replaces the default dialer, for custom TLS or proxy setups.
func WithDialer(dialer *websocket.Dialer) WebSocketOption {
	return func(t *WebSocketTransport) {
		if dialer != nil {
			t.dialer = dialer
		}
	}
}

// NewWebSocketTransport creates a transport for the given ws:// or wss:// URL.
func NewWebSocketTransport(rawURL string, opts ...WebSocketOption) *WebSocketTransport {
	t := &WebSocketTransport{
		url: rawURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials the endpoint, appending the resume token as a query
// parameter when one is known.
func (t *WebSocketTransport) Connect(ctx context.Context, lastEventID string) (Conn, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return nil, fmt.Errorf("stream: invalid websocket url: %w", err)
	}
	if lastEventID != "" {
		q := u.Query()
		q.Set("last_event_id", lastEventID)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), t.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream: websocket handshake failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("stream: websocket dial: %w", err)
	}

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
	})

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
	once sync.Once
}

func (c *wsConn) Receive() (Message, error) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

	// Servers either send an enveloped message or a bare JSON array of
	// records. Either way the consumer's parser gets a Message it can use;
	// an envelope that does not decode is passed through as raw data so the
	// parser can log and drop it.
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil || (msg.Event == "" && len(msg.Data) == 0) {
		return Message{Data: payload}, nil
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		deadline := time.Now().Add(wsWriteWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
	return nil
}
