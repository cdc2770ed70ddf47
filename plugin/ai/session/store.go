// Package session provides the checkpointed, keyed store of per-session
// conversation state.
package session

import (
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/franksymon/Chatbot-api/internal/errors"
	"github.com/franksymon/Chatbot-api/plugin/ai"
)

// DefaultSessionID is used when the caller supplies no session id.
const DefaultSessionID = "default"

// State is an immutable snapshot of one session. Messages strictly grow
// in append order; snapshots are copies, so callers cannot mutate
// stored history out-of-band.
type State struct {
	SessionID  string       `json:"session_id"`
	Messages   []ai.Message `json:"messages"`
	Provider   string       `json:"provider,omitempty"`
	PromptType string       `json:"prompt_type,omitempty"`
	CreatedTs  int64        `json:"created_ts"`
	UpdatedTs  int64        `json:"updated_ts"`
}

type sessionEntry struct {
	state State
	turn  sync.Mutex
}

// Store keeps all session state in process memory. Operations on
// different session ids never block each other beyond the brief map
// access; per-session turn serialization uses the lock returned by
// TurnLock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*sessionEntry),
	}
}

// Load returns the state for a session id, initializing an empty
// session on first reference. It never fails.
func (s *Store) Load(sessionID string) State {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(sessionID)
	return snapshotOf(&entry.state)
}

// TurnLock returns the per-session lock used to serialize turns.
// The lock is created lazily with the session; there are never two
// locks for the same id.
func (s *Store) TurnLock(sessionID string) *sync.Mutex {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.entryLocked(sessionID).turn
}

// AppendTurn atomically appends the turn's messages and updates the
// provider and prompt-type tags, returning the new snapshot. The
// assistant message may be nil when the turn produced none.
func (s *Store) AppendTurn(sessionID string, human ai.Message, assistant *ai.Message, provider, promptType string) State {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	now := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(sessionID)
	entry.state.Messages = append(entry.state.Messages, stamp(human, now))
	if assistant != nil {
		entry.state.Messages = append(entry.state.Messages, stamp(*assistant, now))
	}
	entry.state.Provider = provider
	entry.state.PromptType = promptType
	entry.state.UpdatedTs = now

	return snapshotOf(&entry.state)
}

// Snapshot returns a read-only copy of an existing session, or a
// SESSION_NOT_FOUND error if the id was never initialized. A session
// that exists but holds no messages is not an error.
func (s *Store) Snapshot(sessionID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return State{}, errors.SessionNotFound(sessionID)
	}
	return snapshotOf(&entry.state), nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanupIdle evicts sessions whose last update is older than idleFor
// and returns the number evicted.
func (s *Store) CleanupIdle(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.sessions {
		if entry.state.UpdatedTs >= cutoff {
			continue
		}
		// A held turn lock means a turn is in flight (a streaming turn
		// only bumps UpdatedTs at final persistence). Deleting the
		// entry now would let that turn recreate it with a second
		// lock for the same id.
		if !entry.turn.TryLock() {
			continue
		}
		entry.turn.Unlock()
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

// entryLocked returns the entry for a session id, creating it lazily.
// Caller must hold s.mu.
func (s *Store) entryLocked(sessionID string) *sessionEntry {
	entry, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now().Unix()
		entry = &sessionEntry{
			state: State{
				SessionID: sessionID,
				CreatedTs: now,
				UpdatedTs: now,
			},
		}
		s.sessions[sessionID] = entry
	}
	return entry
}

func snapshotOf(state *State) State {
	snapshot := *state
	snapshot.Messages = make([]ai.Message, len(state.Messages))
	copy(snapshot.Messages, state.Messages)
	return snapshot
}

func stamp(msg ai.Message, now int64) ai.Message {
	msg.UID = shortuuid.New()
	msg.CreatedTs = now
	return msg
}
