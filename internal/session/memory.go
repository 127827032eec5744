package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. State is copied on the way
// in and out so callers never share pointers with the store.
type MemoryStore struct {
	mu    sync.Mutex
	state map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.state[userID]), nil
}

func (m *MemoryStore) Set(_ context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.Empty() {
		delete(m.state, userID)
		return nil
	}
	m.state[userID] = clone(st)
	return nil
}

func clone(st State) State {
	var out State
	if st.Booking != nil {
		b := *st.Booking
		out.Booking = &b
	}
	if st.Cursor != nil {
		c := *st.Cursor
		out.Cursor = &c
	}
	return out
}
