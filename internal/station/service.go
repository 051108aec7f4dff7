// Package station is the daemon's request surface: the operations behind
// the D-Bus interface, the bus binding itself, and a client for it.
package station

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/identity"
	"github.com/gyara/changeup/internal/keymap"
	"github.com/gyara/changeup/internal/logger"
	"github.com/gyara/changeup/internal/rules"
	"github.com/gyara/changeup/internal/state"
)

// ErrNotFound is returned by Focus when no live window has the target
// application id.
var ErrNotFound = errors.New("no window found")

// commandTimeout bounds a single focus or exec command.
const commandTimeout = 2 * time.Second

// Service implements the daemon's operations over the shared state.
type Service struct {
	state   *state.State
	keys    *keymap.Manager
	cmd     keymap.Commander
	version string
}

// NewService wires the operations to the state, the keybinding manager and
// the window-manager command channel.
func NewService(st *state.State, keys *keymap.Manager, cmd keymap.Commander, version string) *Service {
	return &Service{
		state:   st,
		keys:    keys,
		cmd:     cmd,
		version: version,
	}
}

// Ping answers "pong" and re-issues the keybindings, so a client can
// restore them after the window manager reloaded its own config.
func (s *Service) Ping() string {
	s.keys.ReloadActions()
	return "pong"
}

// Version returns the daemon version string.
func (s *Service) Version() string {
	return s.version
}

// Ruleset renders the active rules as TOML.
func (s *Service) Ruleset() (string, error) {
	return config.MarshalRuleset(s.state.Ruleset())
}

// Actions renders the active keymap as TOML.
func (s *Service) Actions() (string, error) {
	return config.MarshalActions(s.keys.Actions())
}

// ReloadConfig loads the rule file at path and, on success, replaces the
// ruleset and the keymap. On failure the state is left untouched.
func (s *Service) ReloadConfig(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &config.LoadError{Path: path, Err: err}
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return "", err
	}

	err = s.state.Update(func(tx *state.Txn) error {
		tx.SetRuleset(cfg.Ruleset)
		s.keys.ReplaceActions(cfg.Actions)
		return nil
	})
	if err != nil {
		return "", err
	}

	log := logger.WithComponent("station")
	for _, w := range cfg.Warnings() {
		log.Warn().Str("path", abs).Str("at", w.Path).Msg(w.Message)
	}
	log.Info().
		Str("path", abs).
		Int("rules", len(cfg.Ruleset)).
		Int("actions", len(cfg.Actions)).
		Msg("Configuration loaded")
	return "done", nil
}

// LastViewedExists reports whether there is a window to jump back to.
func (s *Service) LastViewedExists() bool {
	_, ok := s.state.LastViewed()
	return ok
}

// LastViewed returns the previous window's handle, or -1.
func (s *Service) LastViewed() int64 {
	h, ok := s.state.LastViewed()
	if !ok {
		return -1
	}
	return int64(h)
}

// Snapshot copies the focus state.
func (s *Service) Snapshot() state.Snapshot {
	return s.state.Snapshot()
}

// JumpToLastViewed focuses the previous window. Without one it does
// nothing; a failed focus command is only logged.
func (s *Service) JumpToLastViewed(ctx context.Context) error {
	return s.state.Update(func(tx *state.Txn) error {
		last, ok := tx.Last()
		if !ok {
			logger.WithComponent("station").Debug().Msg("No previous window to jump to")
			return nil
		}
		s.run(ctx, last.FocusCommand())
		return nil
	})
}

// Focus focuses the lowest-handle window whose application id is target.
func (s *Service) Focus(ctx context.Context, target string) error {
	return s.state.Update(func(tx *state.Txn) error {
		windows := tx.Windows(identity.AppID(target))
		if len(windows) == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		s.run(ctx, windows[0].FocusCommand())
		return nil
	})
}

// RuleFocus resolves the named rule and issues its command. Resolution and
// issuance happen under one state acquisition.
func (s *Service) RuleFocus(ctx context.Context, name string) error {
	return s.state.Update(func(tx *state.Txn) error {
		d, err := rules.Resolve(tx, name)
		if err != nil {
			return err
		}
		last, hasLast := tx.Last()
		log := logger.WithComponent("station")
		cmd, ok := d.Command(last, hasLast)
		if !ok {
			log.Debug().Str("rule", name).Stringer("mode", d.Mode).Msg("Rule resolved to nothing")
			return nil
		}
		log.Debug().Str("rule", name).Stringer("mode", d.Mode).Str("command", cmd).Msg("Rule resolved")
		s.run(ctx, cmd)
		return nil
	})
}

// run issues a best-effort command.
func (s *Service) run(ctx context.Context, cmd string) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.cmd.RunCommand(ctx, cmd); err != nil {
		logger.WithComponent("station").Error().
			Err(err).
			Str("command", cmd).
			Msg("Window manager command failed")
	}
}
