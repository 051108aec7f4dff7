package state

import "github.com/gyara/changeup/internal/identity"

// HistoryLen is the capacity of the recency list.
const HistoryLen = 32

// Recency is an ordered list of recently focused handles, oldest first,
// without duplicates and never longer than its capacity.
type Recency struct {
	capacity int
	handles  []identity.Handle
}

// NewRecency returns an empty list holding at most capacity handles.
func NewRecency(capacity int) *Recency {
	if capacity < 1 {
		capacity = 1
	}
	return &Recency{
		capacity: capacity,
		handles:  make([]identity.Handle, 0, capacity+1),
	}
}

// Push moves h to the tail, evicting from the head past capacity.
func (r *Recency) Push(h identity.Handle) {
	r.Remove(h)
	r.handles = append(r.handles, h)
	for len(r.handles) > r.capacity {
		r.handles = r.handles[1:]
	}
}

// Remove drops h if present and reports whether it was.
func (r *Recency) Remove(h identity.Handle) bool {
	for i, v := range r.handles {
		if v == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			return true
		}
	}
	return false
}

// Len is the number of handles held.
func (r *Recency) Len() int { return len(r.handles) }

// Current is the tail: the most recently focused handle.
func (r *Recency) Current() (identity.Handle, bool) {
	return r.fromTail(1)
}

// Previous is the handle focused before Current.
func (r *Recency) Previous() (identity.Handle, bool) {
	return r.fromTail(2)
}

func (r *Recency) fromTail(n int) (identity.Handle, bool) {
	if len(r.handles) < n {
		return 0, false
	}
	return r.handles[len(r.handles)-n], true
}

// Handles returns a copy, oldest first.
func (r *Recency) Handles() []identity.Handle {
	out := make([]identity.Handle, len(r.handles))
	copy(out, r.handles)
	return out
}
