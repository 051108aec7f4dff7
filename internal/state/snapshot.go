package state

import "github.com/gyara/changeup/internal/identity"

// Snapshot is a point-in-time copy of the focus state. Seq grows by one
// with every change, so listeners can order what they receive.
type Snapshot struct {
	Seq     uint64                       `json:"seq" yaml:"seq"`
	Last    *identity.Handle             `json:"last" yaml:"last"`
	NowOn   *identity.Handle             `json:"now_on" yaml:"now_on"`
	History []identity.Handle            `json:"history" yaml:"history"`
	Index   map[string][]identity.Handle `json:"index" yaml:"index"`
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:     s.seq,
		History: s.recent.Handles(),
		Index:   make(map[string][]identity.Handle, len(s.index)),
	}
	if h, ok := s.recent.Previous(); ok {
		snap.Last = &h
	}
	if h, ok := s.recent.Current(); ok {
		snap.NowOn = &h
	}
	for id := range s.index {
		snap.Index[id.String()] = s.windowsLocked(id)
	}
	return snap
}

// Subscribe adds a listener for state changes
func (s *State) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 10)
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, ch)
	s.listenersMu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (s *State) Unsubscribe(ch chan Snapshot) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// publishLocked counts a change and hands the new snapshot to every
// listener, skipping full channels. It runs under mu so listeners see
// changes in the order they were made.
func (s *State) publishLocked() {
	s.seq++
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	if len(s.listeners) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, listener := range s.listeners {
		select {
		case listener <- snap:
		default:
		}
	}
}
