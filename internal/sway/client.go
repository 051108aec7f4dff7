package sway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// CommandError reports a command the window manager rejected.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("sway: command %q failed: %s", e.Command, e.Message)
}

// Version is the GET_VERSION reply.
type Version struct {
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	Patch         int    `json:"patch"`
	HumanReadable string `json:"human_readable"`
}

type commandResult struct {
	Success    bool   `json:"success"`
	ParseError bool   `json:"parse_error"`
	Error      string `json:"error"`
}

// Client is a request/response connection to the window manager. It is
// safe for concurrent use; requests are serialized on the connection.
type Client struct {
	path string

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the IPC socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	conn, err := dialSocket(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Client{path: path, conn: conn}, nil
}

// DialEnv connects to the socket named by SWAYSOCK or I3SOCK.
func DialEnv(ctx context.Context) (*Client, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return Dial(ctx, path)
}

func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect ipc socket: %w", err)
	}
	return conn, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SocketPath returns the path the client is connected to.
func (c *Client) SocketPath() string {
	return c.path
}

// roundTrip sends one request and reads its reply. A failed exchange may
// leave a late reply in the socket, so the connection is dropped and the
// next request dials a fresh one.
func (c *Client) roundTrip(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := dialSocket(ctx, c.path)
		if err != nil {
			return nil, fmt.Errorf("sway: reconnect: %w", err)
		}
		c.conn = conn
	}

	reply, err := c.exchange(ctx, msgType, payload)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return nil, err
	}
	return reply, nil
}

func (c *Client) exchange(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("sway: set deadline: %w", err)
	}
	if err := writeMessage(c.conn, msgType, payload); err != nil {
		return nil, fmt.Errorf("sway: write request: %w", err)
	}
	gotType, reply, err := readMessage(c.conn)
	if err != nil {
		return nil, err
	}
	if gotType != msgType {
		return nil, fmt.Errorf("sway: reply type %d for request type %d", gotType, msgType)
	}
	return reply, nil
}

// RunCommand runs one command string. A rejected command returns a
// *CommandError.
func (c *Client) RunCommand(ctx context.Context, command string) error {
	reply, err := c.roundTrip(ctx, msgRunCommand, []byte(command))
	if err != nil {
		return err
	}
	return parseCommandReply(command, reply)
}

func parseCommandReply(command string, reply []byte) error {
	var results []commandResult
	if err := json.Unmarshal(reply, &results); err != nil {
		return fmt.Errorf("sway: decode command reply: %w", err)
	}
	var failures []string
	for _, r := range results {
		if !r.Success {
			failures = append(failures, r.Error)
		}
	}
	if len(failures) > 0 {
		return &CommandError{Command: command, Message: strings.Join(failures, "; ")}
	}
	return nil
}

// GetTree returns the full layout tree.
func (c *Client) GetTree(ctx context.Context) (*Node, error) {
	reply, err := c.roundTrip(ctx, msgGetTree, nil)
	if err != nil {
		return nil, err
	}
	var root Node
	if err := json.Unmarshal(reply, &root); err != nil {
		return nil, fmt.Errorf("sway: decode tree: %w", err)
	}
	return &root, nil
}

// GetVersion returns the window manager version.
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	reply, err := c.roundTrip(ctx, msgGetVersion, nil)
	if err != nil {
		return nil, err
	}
	var v Version
	if err := json.Unmarshal(reply, &v); err != nil {
		return nil, fmt.Errorf("sway: decode version: %w", err)
	}
	return &v, nil
}
