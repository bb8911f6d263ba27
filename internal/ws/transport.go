// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws owns the single duplex connection to the KMS realtime backend.
package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// TRANSPORT ABSTRACTION
// =============================================================================

// Conn is one established duplex connection.
type Conn interface {
	// ReadMessage blocks until the next text frame or a read error.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error

	// Close closes the connection with the given status code.
	Close(code int, reason string) error
}

// Transport dials connections. It exists so the supervisor's retry policy
// can be exercised without a real network.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// =============================================================================
// GORILLA WEBSOCKET TRANSPORT
// =============================================================================

// WebsocketTransport dials real websocket connections.
type WebsocketTransport struct {
	// HandshakeTimeout bounds the dial (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame (default: 30s).
	WriteTimeout time.Duration
}

// NewWebsocketTransport creates a transport with default timeouts.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     30 * time.Second,
	}
}

// Dial establishes one websocket connection.
func (t *WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: t.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	return &websocketConn{conn: conn, writeTimeout: t.WriteTimeout}, nil
}

// websocketConn adapts *websocket.Conn to the Conn interface.
type websocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// The backend speaks a text-frame protocol; anything else is noise.
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *websocketConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close(code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return c.conn.Close()
}

// isCleanClose reports whether a read error corresponds to a deliberate
// closure (code 1000). Any other closure code or read failure triggers the
// backoff policy.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}
