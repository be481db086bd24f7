package player

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager tracks every connected socket. Account bindings are stored on
// the sessions themselves, so lookups by member number scan the live set.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // socket id → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a connected socket.
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.ID] = s
}

// Unregister removes the socket and releases its account binding.
func (sm *SessionManager) Unregister(s *Session) {
	sm.mu.Lock()
	if cur, ok := sm.sessions[s.ID]; ok && cur == s {
		delete(sm.sessions, s.ID)
	}
	sm.mu.Unlock()
	s.Detach()
}

// Get returns the session for a socket id, or nil if not found.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// ByMemberNumber returns the live session bound to member number n, or nil.
func (sm *SessionManager) ByMemberNumber(n uint32) *Session {
	for _, s := range sm.All() {
		if s.IsClosed() {
			continue
		}
		if m, ok := s.MemberNumber(); ok && m == n {
			return s
		}
	}
	return nil
}

// Online returns the live sessions that have an account bound.
func (sm *SessionManager) Online() []*Session {
	all := sm.All()
	out := all[:0]
	for _, s := range all {
		if s.IsClosed() {
			continue
		}
		if _, ok := s.MemberNumber(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of connected sockets, logged in or not.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast emits one event to every connected socket. The frame is encoded
// once; slow sockets drop it.
func (sm *SessionManager) Broadcast(event string, data any) {
	frame, err := EncodeEvent(event, data)
	if err != nil {
		sm.logger.Error("failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	for _, s := range sm.All() {
		s.SendRaw(frame)
	}
}

// CloseAllSessions closes every socket and waits briefly for the read loops
// to unregister them.
func (sm *SessionManager) CloseAllSessions() {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		if sm.Count() == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
