// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/changeling/broadcast"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/network"
)

const DefaultQueueSize = 64

// Session is one connected client. Its ID is the user_id the engine knows it by.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	out        chan network.Message
	done       chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		out:        make(chan network.Message, queueSize),
		done:       make(chan struct{}),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Enqueue queues msg without blocking. It reports false when the session is
// closed or its queue is full.
func (s *Session) Enqueue(msg network.Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// WritePump delivers queued messages in order until the session closes or a
// write fails.
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.Conn.Send(msg); err != nil {
				logger.Log.Debugf("Write to session %s failed: %v", s.ID, err)
				s.Close()
				return
			}
		}
	}
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// CloseAll closes every session; their read loops then clean up.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mutex.RUnlock()
	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Deliver enqueues every message on its recipient's session. A recipient that
// cannot keep up is disconnected; its read loop then turns that into a leave.
func (m *Manager) Deliver(batch []broadcast.Outbound) {
	for _, o := range batch {
		s, ok := m.Get(o.To)
		if !ok {
			logger.Log.Debugf("Dropping %s for offline user %s", o.Msg.Name, o.To)
			continue
		}
		if !s.Enqueue(o.Msg) {
			logger.Log.Warnf("Session %s cannot keep up, disconnecting", s.ID)
			s.Close()
		}
	}
}
