// Package xprop reads X11 window properties for XWayland windows whose
// layout-tree record carries no class.
package xprop

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/gyara/changeup/internal/logger"
)

// Resolver looks up WM_CLASS on the X server.
type Resolver struct {
	mu        sync.Mutex
	conn      *xgb.Conn
	classAtom xproto.Atom
}

// NewResolver connects to $DISPLAY.
func NewResolver() (*Resolver, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	r := &Resolver{conn: conn}
	atom, err := r.getAtom("WM_CLASS")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("intern WM_CLASS: %w", err)
	}
	r.classAtom = atom

	logger.WithComponent("xprop").Debug().Msg("X11 class resolver connected")
	return r, nil
}

// Close closes the X connection.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn.Close()
}

// Class returns the class half of WM_CLASS for window.
func (r *Resolver) Class(window uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.getProperty(xproto.Window(window), r.classAtom)
	if err != nil {
		logger.WithComponent("xprop").Debug().
			Uint32("window", window).
			Err(err).
			Msg("WM_CLASS lookup failed")
		return "", false
	}
	class := ParseClass(raw)
	return class, class != ""
}

// ParseClass extracts the class from a raw WM_CLASS value, which is
// "instance\0class\0". The instance is used when the class is empty.
func ParseClass(raw string) string {
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	if len(parts) >= 1 {
		return parts[0]
	}
	return ""
}

// getAtom gets an atom ID by name
func (r *Resolver) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(r.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (r *Resolver) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		r.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}
