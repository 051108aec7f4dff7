// Package monitor feeds window-manager events into the focus state.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gyara/changeup/internal/identity"
	"github.com/gyara/changeup/internal/logger"
	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/sway"
)

// ErrMalformedEvent is returned when an event payload cannot be applied.
var ErrMalformedEvent = errors.New("malformed window event")

// ErrStreamClosed is returned when the window manager ends the event stream.
var ErrStreamClosed = errors.New("window event stream closed")

// Conn is the part of the window-manager client the monitor needs.
type Conn interface {
	GetTree(ctx context.Context) (*sway.Node, error)
	Subscribe(ctx context.Context, kinds ...sway.EventType) (sway.Stream, error)
}

// ClassResolver looks up the X11 class of an XWayland window.
type ClassResolver interface {
	Class(window uint32) (string, bool)
}

// Monitor scans the tree once, then applies window events in order.
type Monitor struct {
	conn    Conn
	state   *state.State
	classes ClassResolver
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClassResolver sets a fallback for windows whose record carries
// neither an app_id nor window_properties.
func WithClassResolver(r ClassResolver) Option {
	return func(m *Monitor) {
		m.classes = r
	}
}

// New creates a monitor writing into st.
func New(conn Conn, st *state.State, opts ...Option) *Monitor {
	m := &Monitor{conn: conn, state: st}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run blocks until the stream ends, ctx is cancelled, or an event cannot be
// applied. It always returns a non-nil error.
func (m *Monitor) Run(ctx context.Context) error {
	log := logger.WithComponent("monitor")

	if err := m.Scan(ctx); err != nil {
		return err
	}

	stream, err := m.conn.Subscribe(ctx, sway.EventWindow)
	if err != nil {
		return fmt.Errorf("subscribe to window events: %w", err)
	}
	defer stream.Close()
	log.Info().Msg("Subscribed to window events")

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return fmt.Errorf("read window event: %w", err)
		}
		if ev.Type != sway.EventWindow {
			continue
		}
		if err := m.Apply(ev.Payload); err != nil {
			return err
		}
	}
}

// Scan indexes every window in the current layout tree.
func (m *Monitor) Scan(ctx context.Context) error {
	tree, err := m.conn.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("initial tree scan: %w", err)
	}

	var windows []state.Window
	tree.Walk(func(n *sway.Node) {
		if !n.IsWindow() {
			return
		}
		if id, ok := m.identify(n); ok {
			windows = append(windows, state.Window{Handle: identity.Handle(n.ID), ID: id})
		}
	})
	m.state.Seed(windows)

	logger.WithComponent("monitor").Info().
		Int("windows", len(windows)).
		Msg("Indexed existing windows")
	return nil
}

// Apply decodes one window event payload and updates the state.
func (m *Monitor) Apply(payload []byte) error {
	var ev sway.WindowEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Container == nil || ev.Container.ID == 0 {
		return fmt.Errorf("%w: %q event without container id", ErrMalformedEvent, ev.Change)
	}
	h := identity.Handle(ev.Container.ID)

	log := logger.WithComponent("monitor")
	switch ev.Change {
	case sway.WindowFocus:
		m.state.Focus(h)
		log.Debug().Int64("con_id", int64(h)).Msg("Focus")
	case sway.WindowClose:
		m.state.Close(h)
		log.Debug().Int64("con_id", int64(h)).Msg("Close")
	case sway.WindowNew:
		id, ok := m.identify(ev.Container)
		if !ok {
			log.Debug().Int64("con_id", int64(h)).Msg("New window without identity")
			return nil
		}
		m.state.New(h, id)
		log.Debug().Int64("con_id", int64(h)).Str("identity", id.String()).Msg("New")
	}
	return nil
}

func (m *Monitor) identify(n *sway.Node) (identity.ConID, bool) {
	class := n.ClassValue()
	if n.AppIDValue() == "" && class == "" && m.classes != nil {
		if win, ok := n.X11Window(); ok {
			class, _ = m.classes.Class(win)
		}
	}
	return identity.Derive(n.AppIDValue(), class)
}
