package session

import (
	"context"
	"errors"

	"github.com/quickmeet/signaling/internal/domain"
)

var ErrNotFound = errors.New("session not found")

// Store is the shared session store reached by every node in the
// cluster. It holds authenticated sessions (token <-> user, single
// active login), the ephemeral room member sets, and short-lived
// meeting invitations.
type Store interface {
	// PutSession saves a session under its token and evicts any prior
	// session for the same user.
	PutSession(ctx context.Context, sess *domain.Session) error
	// UpdateSession rewrites an existing session, preserving its TTL.
	UpdateSession(ctx context.Context, sess *domain.Session) error
	GetSessionByToken(ctx context.Context, token string) (*domain.Session, error)
	GetTokenForUser(ctx context.Context, userID string) (string, error)
	RemoveToken(ctx context.Context, token string) error

	PutMember(ctx context.Context, meetingID string, member domain.RoomMember) error
	GetMember(ctx context.Context, meetingID, userID string) (*domain.RoomMember, error)
	ListMembers(ctx context.Context, meetingID string) ([]domain.RoomMember, error)
	// RemoveMember reports whether the member was present.
	RemoveMember(ctx context.Context, meetingID, userID string) (bool, error)
	// ClearRoom discards the whole ephemeral member set of a meeting.
	ClearRoom(ctx context.Context, meetingID string) error

	PutInvite(ctx context.Context, meetingID, inviteeID string) error
	HasInvite(ctx context.Context, meetingID, inviteeID string) (bool, error)
	RemoveInvite(ctx context.Context, meetingID, inviteeID string) error
}
