package session

import "sync"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are appended in strict
// user-then-assistant pairs and are never reordered or edited afterwards.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered conversation record for one session. It only grows.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// Turns returns a copy of the committed turns so callers can iterate and
// build prompts without holding the history lock.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of committed turns (user and assistant counted
// separately).
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Tail returns a copy of the last n turns, or all of them when fewer exist.
func (h *History) Tail(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

func (h *History) append(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Store maps session identifiers to conversation histories. Entries are
// created lazily on first reference and live for the process lifetime; there
// is no eviction, so the map grows monotonically with distinct session ids.
type Store struct {
	mu        sync.RWMutex
	histories map[string]*History
	turnLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		histories: make(map[string]*History),
		turnLocks: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the history for the given session id, creating an empty
// one on first reference. Repeat calls return the same instance, so appends
// are visible to every holder.
func (s *Store) GetOrCreate(sessionID string) *History {
	s.mu.RLock()
	h, ok := s.histories[sessionID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histories[sessionID]; ok {
		return h
	}
	h = &History{}
	s.histories[sessionID] = h
	return h
}

// Append extends the stored history for the session with the given turns.
func (s *Store) Append(sessionID string, turns ...Turn) {
	s.GetOrCreate(sessionID).append(turns...)
}

// TurnLock returns the per-session mutex that serializes in-flight turns for
// one session id. Two concurrent turns against the same session would
// otherwise race on append order.
func (s *Store) TurnLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.turnLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.turnLocks[sessionID] = l
	}
	return l
}

// Count reports the number of sessions seen so far.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories)
}
