package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickmeet/signaling/internal/domain"
)

const (
	keyToken     = "quickmeet:token:"  // token -> session JSON
	keyUserToken = "quickmeet:utoken:" // userId -> token
	keyRoom      = "quickmeet:room:"   // meetingId -> hash of userId -> member JSON
	keyInvite    = "quickmeet:invite:" // meetingId:userId -> "1"
)

// RedisStore implements Store on a shared Redis instance so every node
// sees the same sessions and member sets.
type RedisStore struct {
	rdb        *redis.Client
	sessionTTL time.Duration
	inviteTTL  time.Duration
}

func NewRedisStore(rdb *redis.Client, sessionTTL, inviteTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, sessionTTL: sessionTTL, inviteTTL: inviteTTL}
}

func (s *RedisStore) PutSession(ctx context.Context, sess *domain.Session) error {
	// Single active login: drop the previous token of this user first.
	if old, err := s.rdb.Get(ctx, keyUserToken+sess.UserID).Result(); err == nil && old != "" {
		s.rdb.Del(ctx, keyToken+old)
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyToken+sess.Token, raw, s.sessionTTL).Err(); err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyUserToken+sess.UserID, sess.Token, s.sessionTTL).Err()
}

func (s *RedisStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	ttl, err := s.rdb.TTL(ctx, keyToken+sess.Token).Result()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrNotFound
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyToken+sess.Token, raw, ttl).Err()
}

func (s *RedisStore) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.rdb.Get(ctx, keyToken+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisStore) GetTokenForUser(ctx context.Context, userID string) (string, error) {
	token, err := s.rdb.Get(ctx, keyUserToken+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return token, err
}

func (s *RedisStore) RemoveToken(ctx context.Context, token string) error {
	if sess, err := s.GetSessionByToken(ctx, token); err == nil {
		s.rdb.Del(ctx, keyUserToken+sess.UserID)
	}
	return s.rdb.Del(ctx, keyToken+token).Err()
}

func (s *RedisStore) PutMember(ctx context.Context, meetingID string, member domain.RoomMember) error {
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, keyRoom+meetingID, member.UserID, raw).Err()
}

func (s *RedisStore) GetMember(ctx context.Context, meetingID, userID string) (*domain.RoomMember, error) {
	raw, err := s.rdb.HGet(ctx, keyRoom+meetingID, userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var member domain.RoomMember
	if err := json.Unmarshal(raw, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *RedisStore) ListMembers(ctx context.Context, meetingID string) ([]domain.RoomMember, error) {
	entries, err := s.rdb.HGetAll(ctx, keyRoom+meetingID).Result()
	if err != nil {
		return nil, err
	}
	members := make([]domain.RoomMember, 0, len(entries))
	for _, raw := range entries {
		var member domain.RoomMember
		if err := json.Unmarshal([]byte(raw), &member); err != nil {
			continue
		}
		members = append(members, member)
	}
	return members, nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, meetingID, userID string) (bool, error) {
	n, err := s.rdb.HDel(ctx, keyRoom+meetingID, userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) ClearRoom(ctx context.Context, meetingID string) error {
	return s.rdb.Del(ctx, keyRoom+meetingID).Err()
}

func (s *RedisStore) PutInvite(ctx context.Context, meetingID, inviteeID string) error {
	return s.rdb.Set(ctx, keyInvite+meetingID+":"+inviteeID, "1", s.inviteTTL).Err()
}

func (s *RedisStore) HasInvite(ctx context.Context, meetingID, inviteeID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyInvite+meetingID+":"+inviteeID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) RemoveInvite(ctx context.Context, meetingID, inviteeID string) error {
	return s.rdb.Del(ctx, keyInvite+meetingID+":"+inviteeID).Err()
}
