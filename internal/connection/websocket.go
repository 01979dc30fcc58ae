package connection

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/matozelenak/minidrive/internal/protocol"
)

// The WebSocket transport carries the exact same byte stream as TCP: every
// frame is written as one binary message and the reader treats consecutive
// messages as a continuous stream, so the framer runs unchanged on top.

// AcceptWebSocket upgrades an HTTP request and returns the stream as a
// net.Conn. ctx bounds the lifetime of the returned connection.
func AcceptWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request, maxPayload uint32) (net.Conn, error) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("accepting websocket: %w", err)
	}
	wsConn.SetReadLimit(readLimit(maxPayload))
	return websocket.NetConn(ctx, wsConn, websocket.MessageBinary), nil
}

// DialWebSocket connects to a ws:// or wss:// URL and returns the stream as a
// net.Conn.
func DialWebSocket(ctx context.Context, url string) (net.Conn, error) {
	wsConn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	wsConn.SetReadLimit(readLimit(protocol.DefaultMaxPayload))
	return websocket.NetConn(context.Background(), wsConn, websocket.MessageBinary), nil
}

func readLimit(maxPayload uint32) int64 {
	if maxPayload == 0 {
		maxPayload = protocol.DefaultMaxPayload
	}
	return int64(maxPayload) + protocol.HeaderSize
}
