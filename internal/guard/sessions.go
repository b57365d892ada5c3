package guard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type sessionKey struct {
	merchantID int64
	deviceID   string
}

type Session struct {
	ID         string    `json:"sessionId"`
	MerchantID int64     `json:"merchantId"`
	DeviceID   string    `json:"deviceId"`
	StartedAt  time.Time `json:"startedAt"`
	Snapshot   Snapshot  `json:"snapshot"`
}

// Sessions indexes running guards by merchant and device. A device that
// reconnects replaces its previous session.
type Sessions struct {
	mu     sync.RWMutex
	guards map[sessionKey]*entry
}

type entry struct {
	id        string
	startedAt time.Time
	guard     *Guard
}

func NewSessions() *Sessions {
	return &Sessions{guards: make(map[sessionKey]*entry)}
}

// Register returns the new session id and a release func that removes the
// session unless a newer one has replaced it.
func (s *Sessions) Register(merchantID int64, deviceID string, g *Guard) (string, func()) {
	key := sessionKey{merchantID: merchantID, deviceID: deviceID}
	e := &entry{id: uuid.NewString(), startedAt: time.Now(), guard: g}

	s.mu.Lock()
	s.guards[key] = e
	s.mu.Unlock()

	return e.id, func() {
		s.mu.Lock()
		if current := s.guards[key]; current == e {
			delete(s.guards, key)
		}
		s.mu.Unlock()
	}
}

func (s *Sessions) Lookup(merchantID int64, deviceID string) (Session, bool) {
	s.mu.RLock()
	e, ok := s.guards[sessionKey{merchantID: merchantID, deviceID: deviceID}]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	return Session{
		ID:         e.id,
		MerchantID: merchantID,
		DeviceID:   deviceID,
		StartedAt:  e.startedAt,
		Snapshot:   e.guard.Snapshot(),
	}, true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guards)
}
