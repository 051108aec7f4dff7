// Package rules decides what a focus-or-launch rule does against the
// current window index.
package rules

import (
	"errors"
	"fmt"

	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/identity"
)

// ErrNoSuchRule is returned for a rule name missing from the ruleset.
var ErrNoSuchRule = errors.New("no such rule")

// Mode is the kind of action a rule resolved to.
type Mode int

const (
	NoOp Mode = iota
	JumpBack
	FocusHandle
	Exec
)

func (m Mode) String() string {
	switch m {
	case JumpBack:
		return "jump-back"
	case FocusHandle:
		return "focus"
	case Exec:
		return "exec"
	default:
		return "noop"
	}
}

// Decision is the outcome of resolving one rule.
type Decision struct {
	Mode Mode
	// Handle is the window to focus for FocusHandle.
	Handle identity.Handle
	// Exec is the fallback shell command for Exec, without the "exec" verb.
	Exec string
	// Link is the rule link that matched, for JumpBack and FocusHandle.
	Link string
}

// View is the read-only state a rule is resolved against.
type View interface {
	Rule(name string) (config.Rule, bool)
	NowOn() (identity.Handle, bool)
	Windows(id identity.ConID) []identity.Handle
}

// Resolve walks the rule's links in order. The first link with live
// windows decides: if the focused window is one of them the rule toggles
// back, otherwise it focuses the lowest handle. With no live link the
// rule falls back to its exec command, or does nothing.
func Resolve(v View, name string) (Decision, error) {
	rule, ok := v.Rule(name)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrNoSuchRule, name)
	}

	nowOn, focused := v.NowOn()
	for _, link := range rule.Link {
		windows := v.Windows(identity.ParseLink(link))
		if len(windows) == 0 {
			continue
		}
		if focused && containsHandle(windows, nowOn) {
			return Decision{Mode: JumpBack, Link: link}, nil
		}
		return Decision{Mode: FocusHandle, Handle: windows[0], Link: link}, nil
	}

	if rule.Exec != "" {
		return Decision{Mode: Exec, Exec: rule.Exec}, nil
	}
	return Decision{Mode: NoOp}, nil
}

func containsHandle(hs []identity.Handle, h identity.Handle) bool {
	for _, v := range hs {
		if v == h {
			return true
		}
	}
	return false
}

// Command renders the window-manager command for d. ok is false when
// there is nothing to run: NoOp, or JumpBack with no previous window.
func (d Decision) Command(last identity.Handle, hasLast bool) (cmd string, ok bool) {
	switch d.Mode {
	case JumpBack:
		if !hasLast {
			return "", false
		}
		return last.FocusCommand(), true
	case FocusHandle:
		return d.Handle.FocusCommand(), true
	case Exec:
		return "exec " + d.Exec, true
	default:
		return "", false
	}
}
