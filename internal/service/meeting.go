package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/repository"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// RoomAttacher is the slice of the connection layer the meeting state
// machine needs: attaching and detaching live sockets and keeping
// their cached session snapshots current.
type RoomAttacher interface {
	AttachRoom(meetingID, userID string)
	DetachRoom(meetingID, userID string)
	CloseUser(userID string)
	SetCurrentMeeting(userID, meetingID string)
}

// Sender hands an envelope to the backplane for cluster-wide fan-out.
type Sender interface {
	Publish(ctx context.Context, env *domain.Envelope) error
}

// MeetingService is the membership state machine: every transition of
// a user in or out of a meeting goes through here. The ephemeral store
// is written first on every transition; the durable repository is
// always the last step, so a crash leaves live state ahead of history
// rather than behind it.
type MeetingService struct {
	meetings repository.MeetingRepository
	members  repository.MemberRepository
	contacts repository.ContactRepository
	store    session.Store
	rooms    RoomAttacher
	sender   Sender
	log      *slog.Logger

	// finishing closes the window between an explicit finish and the
	// empty-room auto-finish racing in the same process.
	mu        sync.Mutex
	finishing map[string]struct{}
}

func NewMeetingService(
	meetings repository.MeetingRepository,
	members repository.MemberRepository,
	contacts repository.ContactRepository,
	store session.Store,
	rooms RoomAttacher,
	sender Sender,
	log *slog.Logger,
) *MeetingService {
	if log == nil {
		log = slog.Default()
	}
	return &MeetingService{
		meetings:  meetings,
		members:   members,
		contacts:  contacts,
		store:     store,
		rooms:     rooms,
		sender:    sender,
		log:       log,
		finishing: make(map[string]struct{}),
	}
}

// CreateInstant creates a running meeting on the spot with the caller
// as host and moves the caller into it.
func (s *MeetingService) CreateInstant(ctx context.Context, sess *domain.Session, name string, joinType domain.JoinType, joinPassword string) (*domain.Meeting, error) {
	const op = "service.MeetingService.CreateInstant"

	if err := s.rejectPendingMeeting(ctx, sess, ""); err != nil {
		return nil, err
	}

	meeting := domain.NewInstantMeeting(name, sess.UserID, joinType, joinPassword)
	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.setCurrentMeeting(ctx, sess, meeting.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("instant meeting created",
		slog.String("meeting_id", meeting.ID),
		slog.String("meeting_no", meeting.No),
		slog.String("user_id", sess.UserID))

	return meeting, nil
}

// PreJoinCheck rejects users the meeting has blacklisted, whether the
// mark lives in the ephemeral set or only in the durable record.
func (s *MeetingService) PreJoinCheck(ctx context.Context, meetingID, userID string) error {
	const op = "service.MeetingService.PreJoinCheck"

	member, err := s.store.GetMember(ctx, meetingID, userID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if member != nil && member.Status == domain.MemberStatusBlacklisted {
		return domain.ErrBlacklisted
	}

	row, err := s.members.Get(ctx, meetingID, userID)
	if err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if row != nil && row.Status == domain.MemberStatusBlacklisted {
		return domain.ErrBlacklisted
	}

	return nil
}

// PreJoin resolves a dial-in number, runs admission checks and marks
// the session as headed into the meeting. The websocket join completes
// the entry.
func (s *MeetingService) PreJoin(ctx context.Context, sess *domain.Session, meetingNo, password string) (*domain.Meeting, error) {
	const op = "service.MeetingService.PreJoin"

	meeting, err := s.meetings.GetRunningByNo(ctx, meetingNo)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return nil, domain.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.rejectPendingMeeting(ctx, sess, meeting.ID); err != nil {
		return nil, err
	}
	if err := s.PreJoinCheck(ctx, meeting.ID, sess.UserID); err != nil {
		return nil, err
	}
	if meeting.JoinType == domain.JoinPassword && meeting.JoinPassword != password {
		return nil, domain.ErrWrongPassword
	}

	if err := s.setCurrentMeeting(ctx, sess, meeting.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return meeting, nil
}

// Join completes the entry into the session's current meeting: the
// ephemeral member record first, the live room attachment, the
// member-list broadcast, and the durable participation row last.
// Re-joining is an idempotent refresh.
func (s *MeetingService) Join(ctx context.Context, sess *domain.Session, videoOpen bool) error {
	const op = "service.MeetingService.Join"

	meetingID := sess.CurrentMeetingID
	if meetingID == "" {
		return domain.NewBusinessError("no meeting selected")
	}

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return domain.ErrMeetingNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if meeting.IsFinished() {
		return domain.ErrMeetingFinished
	}
	if err := s.PreJoinCheck(ctx, meetingID, sess.UserID); err != nil {
		return err
	}

	memberType := domain.MemberNormal
	if meeting.CreateUserID == sess.UserID {
		memberType = domain.MemberHost
	}

	member := domain.NewRoomMember(sess, memberType, videoOpen)
	if err := s.store.PutMember(ctx, meetingID, member); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.rooms.AttachRoom(meetingID, sess.UserID)

	if err := s.broadcastMemberList(ctx, meetingID, sess.UserID, sess.Nickname); err != nil {
		s.log.Error("broadcast member list", slog.String("meeting_id", meetingID), sl.Err(err))
	}

	row := &domain.MeetingMember{
		MeetingID:     meetingID,
		UserID:        sess.UserID,
		Nickname:      sess.Nickname,
		LastJoinTime:  time.Now().UTC(),
		Status:        domain.MemberStatusNormal,
		MemberType:    memberType,
		MeetingStatus: domain.MeetingRunning,
	}
	if err := s.members.Upsert(ctx, row); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Exit removes the session's user from their current meeting. status
// distinguishes a voluntary exit from a kick or a blacklist; the exit
// notice is broadcast before the actor's socket is detached so the
// actor sees their own departure. The last member leaving finishes the
// meeting.
func (s *MeetingService) Exit(ctx context.Context, sess *domain.Session, status domain.MemberStatus) error {
	const op = "service.MeetingService.Exit"

	meetingID := sess.CurrentMeetingID
	if meetingID == "" {
		return nil
	}

	removed, err := s.store.RemoveMember(ctx, meetingID, sess.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if status == domain.MemberStatusBlacklisted {
		// Sticky mark so admission checks keep rejecting after the
		// ephemeral record is gone.
		blocked := domain.RoomMember{
			UserID:   sess.UserID,
			Nickname: sess.Nickname,
			Status:   domain.MemberStatusBlacklisted,
		}
		if err := s.store.PutMember(ctx, meetingID, blocked); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.setCurrentMeeting(ctx, sess, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	remaining, err := s.store.ListMembers(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	env, err := domain.NewGroupEnvelope(domain.MsgExitRoom, meetingID, domain.MeetingExitPayload{
		ExitUserID: sess.UserID,
		ExitStatus: status,
		MemberList: present(remaining),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	env.SendUserID = sess.UserID
	env.SendNickname = sess.Nickname
	if err := s.sender.Publish(ctx, env); err != nil {
		s.log.Error("publish exit notice", slog.String("meeting_id", meetingID), sl.Err(err))
	}

	s.rooms.DetachRoom(meetingID, sess.UserID)
	if status == domain.MemberStatusKicked || status == domain.MemberStatusBlacklisted {
		s.rooms.CloseUser(sess.UserID)
	}

	if err := s.members.UpdateStatus(ctx, meetingID, sess.UserID, status); err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if removed && len(present(remaining)) == 0 {
		if err := s.Finish(ctx, meetingID, ""); err != nil && !domain.IsBusinessError(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// ForceExit is the creator removing another member (kick or blacklist).
// Authority is decided by the meeting's creator id, never by anything
// the actor claims about itself.
func (s *MeetingService) ForceExit(ctx context.Context, actor *domain.Session, targetUserID string, status domain.MemberStatus) error {
	const op = "service.MeetingService.ForceExit"

	meetingID := actor.CurrentMeetingID
	if meetingID == "" {
		return domain.ErrMeetingNotFound
	}

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return domain.ErrMeetingNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if meeting.CreateUserID != actor.UserID {
		return domain.ErrNotCreator
	}

	target, err := s.sessionOf(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.ErrUserOffline
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if target.CurrentMeetingID != meetingID {
		return nil
	}

	return s.Exit(ctx, target, status)
}

// Finish ends a meeting. An empty actorUserID marks the internal
// auto-finish path; anyone else must be the creator. Finishing twice
// is a silent no-op.
func (s *MeetingService) Finish(ctx context.Context, meetingID, actorUserID string) error {
	const op = "service.MeetingService.Finish"

	s.mu.Lock()
	if _, busy := s.finishing[meetingID]; busy {
		s.mu.Unlock()
		return nil
	}
	s.finishing[meetingID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.finishing, meetingID)
		s.mu.Unlock()
	}()

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return domain.ErrMeetingNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if meeting.IsFinished() {
		return nil
	}
	if actorUserID != "" && meeting.CreateUserID != actorUserID {
		return domain.ErrNotCreator
	}

	members, err := s.store.ListMembers(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if live := present(members); len(live) > 0 {
		env, err := domain.NewGroupEnvelope(domain.MsgFinishMeeting, meetingID, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		env.SendUserID = actorUserID
		if err := s.sender.Publish(ctx, env); err != nil {
			s.log.Error("publish finish notice", slog.String("meeting_id", meetingID), sl.Err(err))
		}
	}

	for _, m := range members {
		if target, err := s.sessionOf(ctx, m.UserID); err == nil && target.CurrentMeetingID == meetingID {
			if err := s.setCurrentMeeting(ctx, target, ""); err != nil {
				s.log.Error("clear session meeting", slog.String("user_id", m.UserID), sl.Err(err))
			}
		}
		s.rooms.DetachRoom(meetingID, m.UserID)
	}

	if err := s.store.ClearRoom(ctx, meetingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	meeting.Status = domain.MeetingFinished
	meeting.EndTime = time.Now().UTC()
	if err := s.meetings.Update(ctx, meeting); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.members.UpdateMeetingStatus(ctx, meetingID, domain.MeetingFinished); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("meeting finished", slog.String("meeting_id", meetingID), slog.String("actor", actorUserID))
	return nil
}

// Invite sends time-boxed invitations to the caller's contacts.
// Invitees already in the meeting or blacklisted from it are skipped
// silently; a non-contact invitee rejects the whole call.
func (s *MeetingService) Invite(ctx context.Context, sess *domain.Session, inviteeIDs []string) error {
	const op = "service.MeetingService.Invite"

	meetingID := sess.CurrentMeetingID
	if meetingID == "" {
		return domain.NewBusinessError("join a meeting before inviting")
	}

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return domain.ErrMeetingNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if meeting.IsFinished() {
		return domain.ErrMeetingFinished
	}

	contactIDs, err := s.contacts.ListContactIDs(ctx, sess.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	contacts := make(map[string]struct{}, len(contactIDs))
	for _, id := range contactIDs {
		contacts[id] = struct{}{}
	}

	for _, inviteeID := range inviteeIDs {
		if _, ok := contacts[inviteeID]; !ok {
			return domain.ErrNotContact
		}

		member, err := s.store.GetMember(ctx, meetingID, inviteeID)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if member != nil {
			continue
		}
		if err := s.PreJoinCheck(ctx, meetingID, inviteeID); err != nil {
			if domain.IsBusinessError(err) {
				continue
			}
			return err
		}

		if err := s.store.PutInvite(ctx, meetingID, inviteeID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		env, err := domain.NewUserEnvelope(domain.MsgInvite, inviteeID, domain.InvitePayload{
			MeetingID:      meeting.ID,
			MeetingName:    meeting.Name,
			InviteNickname: sess.Nickname,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		env.SendUserID = sess.UserID
		env.SendNickname = sess.Nickname
		if err := s.sender.Publish(ctx, env); err != nil {
			s.log.Error("publish invite", slog.String("invitee", inviteeID), sl.Err(err))
		}
	}

	return nil
}

// AcceptInvite consumes a pending invitation and moves the session
// into the meeting. The websocket join completes the entry, same as
// after PreJoin.
func (s *MeetingService) AcceptInvite(ctx context.Context, sess *domain.Session, meetingID string) (*domain.Meeting, error) {
	const op = "service.MeetingService.AcceptInvite"

	ok, err := s.store.HasInvite(ctx, meetingID, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, domain.ErrInviteExpired
	}

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return nil, domain.ErrMeetingNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if meeting.IsFinished() {
		return nil, domain.ErrMeetingFinished
	}

	if err := s.rejectPendingMeeting(ctx, sess, meetingID); err != nil {
		return nil, err
	}
	if err := s.PreJoinCheck(ctx, meetingID, sess.UserID); err != nil {
		return nil, err
	}

	if err := s.setCurrentMeeting(ctx, sess, meetingID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.RemoveInvite(ctx, meetingID, sess.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return meeting, nil
}

// BroadcastMemberList publishes the current member view of a meeting,
// flagging newUserID as the newcomer. Exposed for the init path.
func (s *MeetingService) BroadcastMemberList(ctx context.Context, meetingID, newUserID, nickname string) error {
	return s.broadcastMemberList(ctx, meetingID, newUserID, nickname)
}

func (s *MeetingService) broadcastMemberList(ctx context.Context, meetingID, newUserID, nickname string) error {
	newMember, err := s.store.GetMember(ctx, meetingID, newUserID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	members, err := s.store.ListMembers(ctx, meetingID)
	if err != nil {
		return err
	}

	env, err := domain.NewGroupEnvelope(domain.MsgJoinRoom, meetingID, domain.MeetingJoinPayload{
		NewMember:  newMember,
		MemberList: present(members),
	})
	if err != nil {
		return err
	}
	env.SendUserID = newUserID
	env.SendNickname = nickname

	return s.sender.Publish(ctx, env)
}

// rejectPendingMeeting rejects a session that is already headed into a
// different meeting that has not finished yet. A stale pointer to a
// finished or deleted meeting is healed in place.
func (s *MeetingService) rejectPendingMeeting(ctx context.Context, sess *domain.Session, exceptMeetingID string) error {
	const op = "service.MeetingService.rejectPendingMeeting"

	current := sess.CurrentMeetingID
	if current == "" || current == exceptMeetingID {
		return nil
	}

	meeting, err := s.meetings.GetByID(ctx, current)
	if err != nil {
		if errors.Is(err, repository.ErrMeetingNotFound) {
			return s.setCurrentMeeting(ctx, sess, "")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !meeting.IsFinished() {
		return domain.ErrPendingMeeting
	}

	return s.setCurrentMeeting(ctx, sess, "")
}

func (s *MeetingService) setCurrentMeeting(ctx context.Context, sess *domain.Session, meetingID string) error {
	sess.CurrentMeetingID = meetingID
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	s.rooms.SetCurrentMeeting(sess.UserID, meetingID)
	return nil
}

func (s *MeetingService) sessionOf(ctx context.Context, userID string) (*domain.Session, error) {
	token, err := s.store.GetTokenForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.GetSessionByToken(ctx, token)
}

// present filters out sticky blacklist markers, leaving only members
// actually in the room.
func present(members []domain.RoomMember) []domain.RoomMember {
	out := members[:0:0]
	for _, m := range members {
		if m.Status == domain.MemberStatusNormal {
			out = append(out, m)
		}
	}
	return out
}
