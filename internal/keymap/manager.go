// Package keymap keeps the window manager's keybindings in step with the
// configured actions.
package keymap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/logger"
	"github.com/sourcegraph/conc"
)

// Commander runs window-manager commands.
type Commander interface {
	RunCommand(ctx context.Context, cmd string) error
}

// commandTimeout bounds each bind/unbind round trip.
const commandTimeout = 2 * time.Second

// BindCommand returns the bindsym command that makes k re-invoke client.
func BindCommand(client string, k config.Keymap) string {
	var then string
	switch k.Type {
	case config.ActionRuleFocus:
		then = fmt.Sprintf("exec %s rule-focus %s", client, k.Target)
	default:
		then = fmt.Sprintf("exec %s last", client)
	}
	return fmt.Sprintf("bindsym %s %s", k.Key, then)
}

// UnbindCommand returns the unbindsym command for k.
func UnbindCommand(k config.Keymap) string {
	return fmt.Sprintf("unbindsym %s", k.Key)
}

// Manager owns the current keymap. Swapping it is synchronous; talking to
// the window manager happens in background jobs that run one at a time,
// in the order they were started.
type Manager struct {
	cmd    Commander
	client string

	mu      sync.Mutex
	actions []config.Keymap
	tail    chan struct{}

	jobs conc.WaitGroup
}

// NewManager returns a manager with an empty keymap whose bindings invoke
// client (the changeup binary name or path).
func NewManager(cmd Commander, client string) *Manager {
	return &Manager{
		cmd:     cmd,
		client:  client,
		actions: []config.Keymap{},
	}
}

// Actions returns a copy of the current keymap.
func (m *Manager) Actions() []config.Keymap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]config.Keymap{}, m.actions...)
}

// ReplaceActions installs actions and returns the previous keymap. A
// background job unbinds the old keys and binds the new ones.
func (m *Manager) ReplaceActions(actions []config.Keymap) []config.Keymap {
	next := append([]config.Keymap{}, actions...)

	m.mu.Lock()
	old := m.actions
	m.actions = next
	m.spawnLocked("replace", func(ctx context.Context, job string) {
		m.unbind(ctx, job, old)
		m.bind(ctx, job, next)
	})
	m.mu.Unlock()

	return append([]config.Keymap{}, old...)
}

// ReloadActions re-issues the bind commands of the current keymap, e.g.
// after the window manager reloaded its own config and dropped them.
func (m *Manager) ReloadActions() {
	m.mu.Lock()
	current := append([]config.Keymap{}, m.actions...)
	m.spawnLocked("reload", func(ctx context.Context, job string) {
		m.bind(ctx, job, current)
	})
	m.mu.Unlock()
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() {
	m.jobs.Wait()
}

// spawnLocked chains a job behind the previous one. Callers hold m.mu.
func (m *Manager) spawnLocked(kind string, run func(ctx context.Context, job string)) {
	prev := m.tail
	done := make(chan struct{})
	m.tail = done
	job := uuid.NewString()

	m.jobs.Go(func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		log := logger.WithComponent("keymap")
		log.Debug().Str("job", job).Str("kind", kind).Msg("Reconciling keybindings")
		run(context.Background(), job)
	})
}

func (m *Manager) unbind(ctx context.Context, job string, actions []config.Keymap) {
	for _, k := range actions {
		m.run(ctx, job, UnbindCommand(k))
	}
}

func (m *Manager) bind(ctx context.Context, job string, actions []config.Keymap) {
	for _, k := range actions {
		m.run(ctx, job, BindCommand(m.client, k))
	}
}

// run issues one command; failures are logged and never stop the job.
func (m *Manager) run(ctx context.Context, job, cmd string) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := m.cmd.RunCommand(ctx, cmd); err != nil {
		logger.WithComponent("keymap").Error().
			Err(err).
			Str("job", job).
			Str("command", cmd).
			Msg("Keybinding command failed")
	}
}
