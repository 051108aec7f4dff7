package station

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/gyara/changeup/internal/state"
)

// Client calls a running daemon over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Connect opens the session bus and addresses the daemon at busName.
func Connect(busName string) (*Client, error) {
	if busName == "" {
		busName = DefaultBusName
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(busName, ObjectPath),
	}, nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, out interface{}, args ...interface{}) error {
	call := c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if out == nil {
		return nil
	}
	return call.Store(out)
}

// Ping asks the daemon to re-issue its keybindings.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var reply string
	err := c.call(ctx, "Ping", &reply)
	return reply, err
}

// ReloadConfig makes the daemon load the rule file at path.
func (c *Client) ReloadConfig(ctx context.Context, path string) (string, error) {
	var reply string
	err := c.call(ctx, "ReloadConfig", &reply, path)
	return reply, err
}

// JumpToLastViewed focuses the previously focused window.
func (c *Client) JumpToLastViewed(ctx context.Context) error {
	return c.call(ctx, "JumpToLastViewed", nil)
}

// Focus focuses a window by application id.
func (c *Client) Focus(ctx context.Context, target string) error {
	return c.call(ctx, "Focus", nil, target)
}

// RuleFocus runs a named rule.
func (c *Client) RuleFocus(ctx context.Context, name string) error {
	return c.call(ctx, "RuleFocus", nil, name)
}

// Snapshot fetches the daemon's focus state.
func (c *Client) Snapshot(ctx context.Context) (state.Snapshot, error) {
	var raw string
	if err := c.call(ctx, "Snapshot", &raw); err != nil {
		return state.Snapshot{}, err
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (c *Client) stringProperty(name string) (string, error) {
	v, err := c.obj.GetProperty(Interface + "." + name)
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("property %s has type %s, want string", name, v.Signature())
	}
	return s, nil
}

// Version returns the daemon's version.
func (c *Client) Version() (string, error) {
	return c.stringProperty("Version")
}

// Ruleset returns the daemon's active rules as TOML.
func (c *Client) Ruleset() (string, error) {
	return c.stringProperty("Ruleset")
}

// Actions returns the daemon's active keymap as TOML.
func (c *Client) Actions() (string, error) {
	return c.stringProperty("Actions")
}
