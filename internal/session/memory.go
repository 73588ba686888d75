package session

import (
	"context"
	"sync"
	"time"

	"github.com/quickmeet/signaling/internal/domain"
)

// MemoryStore implements Store in process memory. Suitable for
// single-node deployments and tests; a cluster needs RedisStore.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*domain.Session // token -> session
	userTokens map[string]string          // userId -> token
	rooms      map[string]map[string]domain.RoomMember
	invites    map[string]time.Time // meetingId:userId -> expiry
	inviteTTL  time.Duration
}

func NewMemoryStore(inviteTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*domain.Session),
		userTokens: make(map[string]string),
		rooms:      make(map[string]map[string]domain.RoomMember),
		invites:    make(map[string]time.Time),
		inviteTTL:  inviteTTL,
	}
}

func (s *MemoryStore) PutSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.userTokens[sess.UserID]; ok {
		delete(s.sessions, old)
	}
	s.sessions[sess.Token] = sess.Clone()
	s.userTokens[sess.UserID] = sess.Token
	return nil
}

func (s *MemoryStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Token]; !ok {
		return ErrNotFound
	}
	s.sessions[sess.Token] = sess.Clone()
	return nil
}

func (s *MemoryStore) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) GetTokenForUser(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.userTokens[userID]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *MemoryStore) RemoveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[token]; ok {
		delete(s.userTokens, sess.UserID)
	}
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) PutMember(ctx context.Context, meetingID string, member domain.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[meetingID]
	if !ok {
		room = make(map[string]domain.RoomMember)
		s.rooms[meetingID] = room
	}
	room[member.UserID] = member
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, meetingID, userID string) (*domain.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.rooms[meetingID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &member, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, meetingID string) ([]domain.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[meetingID]
	members := make([]domain.RoomMember, 0, len(room))
	for _, member := range room {
		members = append(members, member)
	}
	return members, nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, meetingID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[meetingID]
	if !ok {
		return false, nil
	}
	if _, ok := room[userID]; !ok {
		return false, nil
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(s.rooms, meetingID)
	}
	return true, nil
}

func (s *MemoryStore) ClearRoom(ctx context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, meetingID)
	return nil
}

func (s *MemoryStore) PutInvite(ctx context.Context, meetingID, inviteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invites[meetingID+":"+inviteeID] = time.Now().Add(s.inviteTTL)
	return nil
}

func (s *MemoryStore) HasInvite(ctx context.Context, meetingID, inviteeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.invites[meetingID+":"+inviteeID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

func (s *MemoryStore) RemoveInvite(ctx context.Context, meetingID, inviteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.invites, meetingID+":"+inviteeID)
	return nil
}
