package mcp

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// socketTransport adapts one dialed websocket into the SDK's Transport
// shape. The connection is already established; Connect only wraps it.
type socketTransport struct {
	conn *websocket.Conn
}

func newWebSocketTransport(conn *websocket.Conn) sdk.Transport {
	return &socketTransport{conn: conn}
}

func (t *socketTransport) Connect(ctx context.Context) (sdk.Connection, error) {
	return &socketConn{conn: t.conn}, nil
}

type socketConn struct {
	conn *websocket.Conn
}

// withDeadline applies a context deadline to the websocket for the duration
// of one read or write, then clears it.
func withDeadline(ctx context.Context, set func(time.Time) error, op func() error) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = set(dl)
		defer set(time.Time{})
	}
	return op()
}

func (c *socketConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	var data []byte
	err := withDeadline(ctx, c.conn.SetReadDeadline, func() error {
		var err error
		_, data, err = c.conn.ReadMessage()
		return err
	})
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeMessage(data)
}

func (c *socketConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return withDeadline(ctx, c.conn.SetWriteDeadline, func() error {
		return c.conn.WriteMessage(websocket.BinaryMessage, data)
	})
}

func (c *socketConn) Close() error { return c.conn.Close() }

func (c *socketConn) SessionID() string { return "" }
