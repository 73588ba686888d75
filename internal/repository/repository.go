package repository

import (
	"context"
	"errors"

	"github.com/quickmeet/signaling/internal/domain"
)

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMemberNotFound  = errors.New("meeting member not found")
)

type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	GetByID(ctx context.Context, id string) (*domain.Meeting, error)
	// GetRunningByNo resolves a dial-in number to its running meeting.
	GetRunningByNo(ctx context.Context, no string) (*domain.Meeting, error)
	Update(ctx context.Context, meeting *domain.Meeting) error
}

type MemberRepository interface {
	// Upsert inserts the row or refreshes last-join time and status
	// for an existing (meeting, user) pair.
	Upsert(ctx context.Context, member *domain.MeetingMember) error
	Get(ctx context.Context, meetingID, userID string) (*domain.MeetingMember, error)
	ListByMeeting(ctx context.Context, meetingID string) ([]domain.MeetingMember, error)
	UpdateStatus(ctx context.Context, meetingID, userID string, status domain.MemberStatus) error
	// UpdateMeetingStatus stamps the meeting's final status on every
	// member row, for history views.
	UpdateMeetingStatus(ctx context.Context, meetingID string, status domain.MeetingStatus) error
}

type ContactRepository interface {
	// ListContactIDs returns ids of the user's accepted contacts.
	ListContactIDs(ctx context.Context, userID string) ([]string, error)
}
