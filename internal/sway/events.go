package sway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Event is one raw event message. Payload decoding is left to the
// consumer so a malformed payload surfaces where it can be judged.
type Event struct {
	Type    EventType
	Payload json.RawMessage
}

// WindowChange is the "change" field of a window event.
type WindowChange string

const (
	WindowNew      WindowChange = "new"
	WindowClose    WindowChange = "close"
	WindowFocus    WindowChange = "focus"
	WindowTitle    WindowChange = "title"
	WindowMove     WindowChange = "move"
	WindowFloating WindowChange = "floating"
	WindowMark     WindowChange = "mark"
	WindowUrgent   WindowChange = "urgent"
)

// WindowEvent is the payload of a window event.
type WindowEvent struct {
	Change    WindowChange `json:"change"`
	Container *Node        `json:"container"`
}

// Stream yields events in delivery order. Next returns io.EOF once the
// window manager closes the connection.
type Stream interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

type subscribeReply struct {
	Success bool `json:"success"`
}

// Subscribe opens a dedicated connection and subscribes it to kinds. The
// window manager requires subscriptions to live on their own socket.
func (c *Client) Subscribe(ctx context.Context, kinds ...EventType) (Stream, error) {
	conn, err := dialSocket(ctx, c.path)
	if err != nil {
		return nil, err
	}
	s, err := subscribeConn(conn, kinds)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func subscribeConn(conn net.Conn, kinds []EventType) (*eventStream, error) {
	payload, err := json.Marshal(kinds)
	if err != nil {
		return nil, fmt.Errorf("sway: encode subscribe: %w", err)
	}
	if err := writeMessage(conn, msgSubscribe, payload); err != nil {
		return nil, fmt.Errorf("sway: write subscribe: %w", err)
	}
	msgType, reply, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("sway: read subscribe reply: %w", err)
	}
	if msgType != msgSubscribe {
		return nil, fmt.Errorf("sway: unexpected reply type %d to subscribe", msgType)
	}
	var ack subscribeReply
	if err := json.Unmarshal(reply, &ack); err != nil {
		return nil, fmt.Errorf("sway: decode subscribe reply: %w", err)
	}
	if !ack.Success {
		return nil, fmt.Errorf("sway: subscribe to %v rejected", kinds)
	}
	return newEventStream(conn), nil
}

type frame struct {
	event Event
	err   error
}

// eventStream reads frames on its own goroutine so Next can honour ctx.
type eventStream struct {
	conn   net.Conn
	frames chan frame
	once   sync.Once
	done   chan struct{}
}

func newEventStream(conn net.Conn) *eventStream {
	s := &eventStream{
		conn:   conn,
		frames: make(chan frame),
		done:   make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *eventStream) read() {
	defer close(s.frames)
	for {
		msgType, payload, err := readMessage(s.conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			s.send(frame{err: err})
			return
		}
		if msgType&eventBit == 0 {
			// Stray reply on the event socket.
			continue
		}
		kind, ok := eventCodes[msgType]
		if !ok {
			kind = EventType(fmt.Sprintf("0x%x", msgType))
		}
		if !s.send(frame{event: Event{Type: kind, Payload: payload}}) {
			return
		}
	}
}

func (s *eventStream) send(f frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	}
}

func (s *eventStream) Next(ctx context.Context) (Event, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return Event{}, io.EOF
		}
		return f.event, f.err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
