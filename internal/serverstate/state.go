package serverstate

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status values reported on /healthz.
const (
	StatusNotReady = "not_ready"
	StatusReady    = "ready"
	StatusDraining = "draining"
	StatusUnknown  = "unknown"
)

// State is the bridge's lifecycle snapshot. Fields change together.
type State struct {
	Status   string    `json:"status"`
	Draining bool      `json:"draining"`
	Since    time.Time `json:"since,omitempty"`
}

// Store persists State. The memory store serves a single process; the Redis
// store lets several bridge replicas behind one balancer share a drain flag.
type Store interface {
	Load() State
	Store(State)
}

var (
	mu     sync.RWMutex
	active Store = NewMemoryStore()
)

// UseStore replaces the active Store. nil is ignored.
func UseStore(s Store) {
	if s == nil {
		return
	}
	mu.Lock()
	active = s
	mu.Unlock()
}

func current() Store {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

type memoryStore struct {
	v atomic.Value
}

// NewMemoryStore returns a Store initialised to not_ready.
func NewMemoryStore() Store {
	ms := &memoryStore{}
	ms.v.Store(State{Status: StatusNotReady})
	return ms
}

func (m *memoryStore) Load() State {
	if st, ok := m.v.Load().(State); ok {
		return st
	}
	return State{Status: StatusUnknown}
}

func (m *memoryStore) Store(s State) { m.v.Store(s) }

// Snapshot returns the full current state.
func Snapshot() State { return current().Load() }

// SetState updates the status. Becoming ready clears a draining flag left
// over from a previous run; other statuses keep it.
func SetState(status string) {
	s := current()
	st := s.Load()
	if st.Status != status {
		st.Since = time.Now().UTC()
	}
	st.Status = status
	if status == StatusReady {
		st.Draining = false
	}
	s.Store(st)
}

// GetState returns the current status.
func GetState() string { return current().Load().Status }

// StartDrain marks the bridge as draining; new chats are refused from now on.
func StartDrain() {
	s := current()
	st := s.Load()
	st.Draining = true
	st.Status = StatusDraining
	st.Since = time.Now().UTC()
	s.Store(st)
}

// IsDraining reports whether the bridge is draining.
func IsDraining() bool { return current().Load().Draining }
