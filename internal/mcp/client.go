// Package mcp connects to an MCP tool server over websocket and exposes a
// small call helper used by the conversation tools.
package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/discord-voice-assistant/internal/logging"
)

// Client manages an MCP client session over a websocket transport.
type Client struct {
	client  *sdk.Client
	session *sdk.ClientSession
	cancel  context.CancelFunc
}

// NewClient creates a disconnected client with the given name/version.
func NewClient(name, version string) *Client {
	impl := &sdk.Implementation{Name: name, Version: version}
	return &Client{client: sdk.NewClient(impl, nil)}
}

// Connect dials the MCP server websocket endpoint and creates a session.
// http(s) schemes are rewritten to ws(s).
func (c *Client) Connect(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	sess, err := c.client.Connect(ctx, newWebSocketTransport(conn), nil)
	if err != nil {
		_ = conn.Close()
		return err
	}
	c.session = sess

	kaCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				_ = sess.Ping(context.Background(), nil)
			}
		}
	}()
	logging.Infow("mcp: connected", "url", u.String())
	return nil
}

// CallTool invokes a named tool and flattens its text content into one
// string for inclusion in a tool-result turn.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c == nil || c.session == nil {
		return "", fmt.Errorf("mcp client not connected")
	}
	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(*sdk.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool %s failed: %s", name, strings.Join(parts, "\n"))
	}
	return strings.Join(parts, "\n"), nil
}

func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
