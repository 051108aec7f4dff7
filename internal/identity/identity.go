// Package identity names windows for grouping and addresses them for focus
// commands.
package identity

import (
	"fmt"
	"strings"
)

// Kind tags which window attribute an identity was taken from.
type Kind uint8

const (
	// ByApplicationID is a Wayland app_id.
	ByApplicationID Kind = iota + 1
	// ByWindowClass is an X11 WM_CLASS class name.
	ByWindowClass
)

// Link prefixes accepted in rule files.
const (
	appIDPrefix = "app_id:"
	classPrefix = "class:"
)

func (k Kind) String() string {
	switch k {
	case ByApplicationID:
		return "app_id"
	case ByWindowClass:
		return "class"
	default:
		return "unknown"
	}
}

// ConID groups windows of the same application. Two values are equal only
// when both Kind and Value match, so it is safe to use as a map key.
type ConID struct {
	Kind  Kind
	Value string
}

// AppID returns the identity for a Wayland application id.
func AppID(value string) ConID {
	return ConID{Kind: ByApplicationID, Value: value}
}

// Class returns the identity for an X11 window class.
func Class(value string) ConID {
	return ConID{Kind: ByWindowClass, Value: value}
}

// Derive picks the identity of a window record: the application id when
// present, otherwise the X11 class. ok is false when neither is set and the
// window must not be tracked.
func Derive(appID, class string) (id ConID, ok bool) {
	if appID != "" {
		return AppID(appID), true
	}
	if class != "" {
		return Class(class), true
	}
	return ConID{}, false
}

// ParseLink converts a rule link into an identity. "class:" and "app_id:"
// select the kind explicitly; bare text is an application id.
func ParseLink(link string) ConID {
	switch {
	case strings.HasPrefix(link, classPrefix):
		return Class(strings.TrimPrefix(link, classPrefix))
	case strings.HasPrefix(link, appIDPrefix):
		return AppID(strings.TrimPrefix(link, appIDPrefix))
	default:
		return AppID(link)
	}
}

// String renders the identity in link syntax, so ParseLink(id.String()) == id.
func (c ConID) String() string {
	if c.Kind == ByWindowClass {
		return classPrefix + c.Value
	}
	return c.Value
}

// Handle is the window manager's container id for a live window. Handles
// are unique among open windows and reused after a window closes.
type Handle int64

// FocusCommand is the window-manager command that focuses the window.
func (h Handle) FocusCommand() string {
	return fmt.Sprintf("[con_id=%d] focus", int64(h))
}
