// Package state holds the focus history and window index shared by the
// event monitor and the IPC facade.
package state

import (
	"sort"
	"sync"

	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/identity"
)

// Window is a live window with a derivable identity.
type Window struct {
	Handle identity.Handle
	ID     identity.ConID
}

// State is the single mutable aggregate of the daemon. Every method takes
// the mutex for the whole of its read-modify-write; Update runs compound
// operations under one acquisition.
type State struct {
	mu      sync.Mutex
	recent  *Recency
	index   map[identity.ConID]map[identity.Handle]struct{}
	owner   map[identity.Handle]identity.ConID
	ruleset config.Ruleset
	seq     uint64

	listenersMu sync.RWMutex
	listeners   []chan Snapshot
}

// New returns an empty state: no history, no windows, no rules.
func New() *State {
	return &State{
		recent:  NewRecency(HistoryLen),
		index:   make(map[identity.ConID]map[identity.Handle]struct{}),
		owner:   make(map[identity.Handle]identity.ConID),
		ruleset: config.Ruleset{},
	}
}

// Seed indexes the windows found by the initial tree scan.
func (s *State) Seed(windows []Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range windows {
		s.insertLocked(w.Handle, w.ID)
	}
	s.publishLocked()
}

// Focus records h as the focused window.
func (s *State) Focus(h identity.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Push(h)
	s.publishLocked()
}

// Close forgets h. Closing an unknown handle is a no-op.
func (s *State) Close(h identity.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Remove(h)
	s.removeLocked(h)
	s.publishLocked()
}

// New indexes a newly opened window.
func (s *State) New(h identity.Handle, id identity.ConID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(h, id)
	s.publishLocked()
}

// LastViewed returns the window focused before the current one.
func (s *State) LastViewed() (identity.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent.Previous()
}

// NowOn returns the currently focused window.
func (s *State) NowOn() (identity.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent.Current()
}

// Ruleset returns a copy of the active rules.
func (s *State) Ruleset() config.Ruleset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRuleset(s.ruleset)
}

// Update runs fn with exclusive access. The Txn must not escape fn.
func (s *State) Update(fn func(tx *Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Txn{s: s})
}

// insertLocked adds h under id, moving it out of any other identity so a
// handle never belongs to two sets.
func (s *State) insertLocked(h identity.Handle, id identity.ConID) {
	if prev, ok := s.owner[h]; ok {
		if prev == id {
			return
		}
		s.removeLocked(h)
	}
	set, ok := s.index[id]
	if !ok {
		set = make(map[identity.Handle]struct{})
		s.index[id] = set
	}
	set[h] = struct{}{}
	s.owner[h] = id
}

func (s *State) removeLocked(h identity.Handle) {
	id, ok := s.owner[h]
	if !ok {
		return
	}
	delete(s.owner, h)
	set := s.index[id]
	delete(set, h)
	if len(set) == 0 {
		delete(s.index, id)
	}
}

func (s *State) windowsLocked(id identity.ConID) []identity.Handle {
	set := s.index[id]
	if len(set) == 0 {
		return nil
	}
	out := make([]identity.Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copyRuleset(rs config.Ruleset) config.Ruleset {
	out := make(config.Ruleset, len(rs))
	for name, rule := range rs {
		out[name] = config.Rule{
			Link: append([]string(nil), rule.Link...),
			Exec: rule.Exec,
		}
	}
	return out
}

// Txn is the view handed to Update callbacks.
type Txn struct {
	s *State
}

// Last is the previously focused window.
func (t *Txn) Last() (identity.Handle, bool) { return t.s.recent.Previous() }

// NowOn is the focused window.
func (t *Txn) NowOn() (identity.Handle, bool) { return t.s.recent.Current() }

// Windows lists live windows of id in ascending handle order.
func (t *Txn) Windows(id identity.ConID) []identity.Handle { return t.s.windowsLocked(id) }

// Contains reports whether h is indexed under id.
func (t *Txn) Contains(id identity.ConID, h identity.Handle) bool {
	_, ok := t.s.index[id][h]
	return ok
}

// Rule looks up a rule by name.
func (t *Txn) Rule(name string) (config.Rule, bool) {
	rule, ok := t.s.ruleset[name]
	return rule, ok
}

// SetRuleset replaces the active rules.
func (t *Txn) SetRuleset(rs config.Ruleset) {
	t.s.ruleset = copyRuleset(rs)
}
