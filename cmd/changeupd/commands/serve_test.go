package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/gyara/changeup/internal/keymap"
	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/station"
)

type nopCommander struct{}

func (nopCommander) RunCommand(context.Context, string) error { return nil }

const goodRules = `
[ruleset.term]
link = ["foot"]
`

const otherRules = `
[ruleset.browser]
link = ["firefox"]
`

func writeRulesFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

type reloaderHarness struct {
	st       *state.State
	path     string
	requests chan string
	hup      chan os.Signal
	cancel   context.CancelFunc
	done     chan error
}

func startReloader(t *testing.T) *reloaderHarness {
	t.Helper()
	h := &reloaderHarness{
		st:       state.New(),
		path:     filepath.Join(t.TempDir(), "config.toml"),
		requests: make(chan string),
		hup:      make(chan os.Signal),
		done:     make(chan error, 1),
	}
	keys := keymap.NewManager(nopCommander{}, "changeup")
	svc := station.NewService(h.st, keys, nopCommander{}, "test")

	writeRulesFile(t, h.path, goodRules)
	if _, err := svc.ReloadConfig(h.path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- reloader(svc, h.path, h.requests, h.hup)(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
		keys.Wait()
	})
	return h
}

// send hands a request over; the loop takes the next one only after the
// previous reload has returned, so a second send marks completion.
func (h *reloaderHarness) send(t *testing.T) {
	t.Helper()
	for i := 0; i < 2; i++ {
		select {
		case h.requests <- "config file updated":
		case <-time.After(2 * time.Second):
			t.Fatal("reloader not receiving")
		}
	}
}

func (h *reloaderHarness) hasRule(name string) bool {
	_, ok := h.st.Ruleset()[name]
	return ok
}

func TestReloaderKeepsRulesOnFailure(t *testing.T) {
	h := startReloader(t)

	writeRulesFile(t, h.path, "[ruleset.term\n")
	h.send(t)
	if !h.hasRule("term") {
		t.Fatal("failed reload dropped the previous rules")
	}

	writeRulesFile(t, h.path, otherRules)
	h.send(t)
	if !h.hasRule("browser") || h.hasRule("term") {
		t.Fatalf("ruleset after good reload = %v", h.st.Ruleset())
	}
}

func TestReloaderHandlesHangup(t *testing.T) {
	h := startReloader(t)
	writeRulesFile(t, h.path, otherRules)

	h.hup <- syscall.SIGHUP
	h.send(t)
	if !h.hasRule("browser") {
		t.Fatal("SIGHUP did not reload the rule file")
	}
}

func TestReloaderStopsWithContext(t *testing.T) {
	h := startReloader(t)
	h.cancel()
	select {
	case err := <-h.done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("reloader returned %v", err)
		}
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("reloader did not stop")
	}
}
