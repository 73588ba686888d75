package repository

import (
	"context"
	"sync"

	"github.com/quickmeet/signaling/internal/domain"
)

type InMemoryMeetingRepository struct {
	mu       sync.RWMutex
	meetings map[string]*domain.Meeting
}

func NewInMemoryMeetingRepository() *InMemoryMeetingRepository {
	return &InMemoryMeetingRepository{meetings: make(map[string]*domain.Meeting)}
}

func (r *InMemoryMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := *meeting
	r.meetings[meeting.ID] = &m
	return nil
}

func (r *InMemoryMeetingRepository) GetByID(ctx context.Context, id string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	meeting, ok := r.meetings[id]
	if !ok {
		return nil, ErrMeetingNotFound
	}
	m := *meeting
	return &m, nil
}

func (r *InMemoryMeetingRepository) GetRunningByNo(ctx context.Context, no string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, meeting := range r.meetings {
		if meeting.No == no && meeting.Status == domain.MeetingRunning {
			m := *meeting
			return &m, nil
		}
	}
	return nil, ErrMeetingNotFound
}

func (r *InMemoryMeetingRepository) Update(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meetings[meeting.ID]; !ok {
		return ErrMeetingNotFound
	}
	m := *meeting
	r.meetings[meeting.ID] = &m
	return nil
}

type memberKey struct {
	meetingID string
	userID    string
}

type InMemoryMemberRepository struct {
	mu      sync.RWMutex
	members map[memberKey]*domain.MeetingMember
}

func NewInMemoryMemberRepository() *InMemoryMemberRepository {
	return &InMemoryMemberRepository{members: make(map[memberKey]*domain.MeetingMember)}
}

func (r *InMemoryMemberRepository) Upsert(ctx context.Context, member *domain.MeetingMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := *member
	r.members[memberKey{member.MeetingID, member.UserID}] = &m
	return nil
}

func (r *InMemoryMemberRepository) Get(ctx context.Context, meetingID, userID string) (*domain.MeetingMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[memberKey{meetingID, userID}]
	if !ok {
		return nil, ErrMemberNotFound
	}
	m := *member
	return &m, nil
}

func (r *InMemoryMemberRepository) ListByMeeting(ctx context.Context, meetingID string) ([]domain.MeetingMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []domain.MeetingMember
	for key, member := range r.members {
		if key.meetingID == meetingID {
			members = append(members, *member)
		}
	}
	return members, nil
}

func (r *InMemoryMemberRepository) UpdateStatus(ctx context.Context, meetingID, userID string, status domain.MemberStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[memberKey{meetingID, userID}]
	if !ok {
		return ErrMemberNotFound
	}
	member.Status = status
	return nil
}

func (r *InMemoryMemberRepository) UpdateMeetingStatus(ctx context.Context, meetingID string, status domain.MeetingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, member := range r.members {
		if key.meetingID == meetingID {
			member.MeetingStatus = status
		}
	}
	return nil
}

type InMemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[string][]string
}

func NewInMemoryContactRepository() *InMemoryContactRepository {
	return &InMemoryContactRepository{contacts: make(map[string][]string)}
}

// AddContact records a one-way contact relation, for tests and dev.
func (r *InMemoryContactRepository) AddContact(userID, contactID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts[userID] = append(r.contacts[userID], contactID)
}

func (r *InMemoryContactRepository) ListContactIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.contacts[userID]))
	copy(ids, r.contacts[userID])
	return ids, nil
}
