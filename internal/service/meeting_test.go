package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/repository"
	"github.com/quickmeet/signaling/internal/service"
	"github.com/quickmeet/signaling/internal/session"
)

type fakeRooms struct {
	mu      sync.Mutex
	current map[string]string // userID -> meetingID attached
	closed  []string
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{current: make(map[string]string)}
}

func (f *fakeRooms) AttachRoom(meetingID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current[userID] = meetingID
}

func (f *fakeRooms) DetachRoom(meetingID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current[userID] == meetingID {
		delete(f.current, userID)
	}
}

func (f *fakeRooms) CloseUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, userID)
}

func (f *fakeRooms) SetCurrentMeeting(userID, meetingID string) {}

func (f *fakeRooms) closedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*domain.Envelope
}

func (f *fakeSender) Publish(_ context.Context, env *domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) byType(t domain.MessageType) []*domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Envelope
	for _, env := range f.sent {
		if env.MessageType == t {
			out = append(out, env)
		}
	}
	return out
}

type fixture struct {
	svc      *service.MeetingService
	store    session.Store
	meetings *repository.InMemoryMeetingRepository
	members  *repository.InMemoryMemberRepository
	contacts *repository.InMemoryContactRepository
	rooms    *fakeRooms
	sender   *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    session.NewMemoryStore(time.Minute),
		meetings: repository.NewInMemoryMeetingRepository(),
		members:  repository.NewInMemoryMemberRepository(),
		contacts: repository.NewInMemoryContactRepository(),
		rooms:    newFakeRooms(),
		sender:   &fakeSender{},
	}
	f.svc = service.NewMeetingService(f.meetings, f.members, f.contacts, f.store, f.rooms, f.sender, nil)
	return f
}

func (f *fixture) login(t *testing.T, userID, nickname string) *domain.Session {
	t.Helper()
	sess := &domain.Session{UserID: userID, Nickname: nickname, Token: "tok-" + userID}
	if err := f.store.PutSession(context.Background(), sess); err != nil {
		t.Fatalf("PutSession(%s): %v", userID, err)
	}
	return sess
}

func (f *fixture) sessionOf(t *testing.T, userID string) *domain.Session {
	t.Helper()
	sess, err := f.store.GetSessionByToken(context.Background(), "tok-"+userID)
	if err != nil {
		t.Fatalf("GetSessionByToken(%s): %v", userID, err)
	}
	return sess
}

func TestCreateInstantAndJoin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if meeting.No == "" || meeting.Status != domain.MeetingRunning {
		t.Fatalf("CreateInstant: bad meeting %+v", meeting)
	}
	if alice.CurrentMeetingID != meeting.ID {
		t.Fatalf("CreateInstant: session not pointed at the meeting")
	}

	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join: %v", err)
	}

	member, err := f.store.GetMember(ctx, meeting.ID, "alice")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if member.MemberType != domain.MemberHost {
		t.Fatalf("Join: creator must become host, got type %d", member.MemberType)
	}

	row, err := f.members.Get(ctx, meeting.ID, "alice")
	if err != nil {
		t.Fatalf("members.Get: %v", err)
	}
	if row.MemberType != domain.MemberHost || row.Status != domain.MemberStatusNormal {
		t.Fatalf("members.Get: bad durable row %+v", row)
	}

	if got := f.sender.byType(domain.MsgJoinRoom); len(got) != 1 {
		t.Fatalf("Join: want one member-list broadcast, got %d", len(got))
	}
}

func TestJoinByNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	bob := f.login(t, "bob", "Bob")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinPassword, "s3cret")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}

	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, "wrong"); !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("PreJoin: want ErrWrongPassword, got %v", err)
	}
	if _, err := f.svc.PreJoin(ctx, bob, "0000000000", "s3cret"); !errors.Is(err, domain.ErrMeetingNotFound) {
		t.Fatalf("PreJoin: want ErrMeetingNotFound for unknown number, got %v", err)
	}

	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, "s3cret"); err != nil {
		t.Fatalf("PreJoin: %v", err)
	}
	if err := f.svc.Join(ctx, bob, false); err != nil {
		t.Fatalf("Join: %v", err)
	}

	member, err := f.store.GetMember(ctx, meeting.ID, "bob")
	if err != nil || member.MemberType != domain.MemberNormal {
		t.Fatalf("GetMember: want normal member, got %+v err=%v", member, err)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	bob := f.login(t, "bob", "Bob")
	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, ""); err != nil {
		t.Fatalf("PreJoin: %v", err)
	}
	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := f.svc.Join(ctx, bob, false); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	if err := f.svc.Finish(ctx, meeting.ID, "alice"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := f.svc.Finish(ctx, meeting.ID, "alice"); err != nil {
		t.Fatalf("Finish (second): %v", err)
	}

	if got := f.sender.byType(domain.MsgFinishMeeting); len(got) != 1 {
		t.Fatalf("Finish: want exactly one broadcast, got %d", len(got))
	}

	stored, err := f.meetings.GetByID(ctx, meeting.ID)
	if err != nil || !stored.IsFinished() || stored.EndTime.IsZero() {
		t.Fatalf("Finish: meeting not closed out: %+v err=%v", stored, err)
	}

	if sess := f.sessionOf(t, "bob"); sess.CurrentMeetingID != "" {
		t.Fatalf("Finish: member session still points at the meeting")
	}
	members, _ := f.store.ListMembers(ctx, meeting.ID)
	if len(members) != 0 {
		t.Fatalf("Finish: ephemeral member set not cleared")
	}
}

func TestFinishIsCreatorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	bob := f.login(t, "bob", "Bob")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, ""); err != nil {
		t.Fatalf("PreJoin: %v", err)
	}

	if err := f.svc.Finish(ctx, meeting.ID, "bob"); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("Finish: want ErrNotCreator, got %v", err)
	}
}

func TestLastMemberExitAutoFinishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if err := f.svc.Exit(ctx, alice, domain.MemberStatusExited); err != nil {
		t.Fatalf("Exit: %v", err)
	}

	stored, err := f.meetings.GetByID(ctx, meeting.ID)
	if err != nil || !stored.IsFinished() {
		t.Fatalf("Exit: empty meeting must auto-finish, got %+v err=%v", stored, err)
	}
	if sess := f.sessionOf(t, "alice"); sess.CurrentMeetingID != "" {
		t.Fatalf("Exit: session still points at the meeting")
	}
}

func TestKickByCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	bob := f.login(t, "bob", "Bob")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, ""); err != nil {
		t.Fatalf("PreJoin: %v", err)
	}
	if err := f.svc.Join(ctx, bob, false); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	if err := f.svc.ForceExit(ctx, f.sessionOf(t, "bob"), "alice", domain.MemberStatusKicked); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("ForceExit: want ErrNotCreator for non-creator, got %v", err)
	}

	if err := f.svc.ForceExit(ctx, alice, "bob", domain.MemberStatusKicked); err != nil {
		t.Fatalf("ForceExit: %v", err)
	}

	if _, err := f.store.GetMember(ctx, meeting.ID, "bob"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("ForceExit: kicked member must leave the ephemeral set")
	}
	if sess := f.sessionOf(t, "bob"); sess.CurrentMeetingID != "" {
		t.Fatalf("ForceExit: kicked session still points at the meeting")
	}
	row, err := f.members.Get(ctx, meeting.ID, "bob")
	if err != nil || row.Status != domain.MemberStatusKicked {
		t.Fatalf("ForceExit: durable row not marked kicked: %+v err=%v", row, err)
	}
	if closed := f.rooms.closedUsers(); len(closed) != 1 || closed[0] != "bob" {
		t.Fatalf("ForceExit: kicked member's transport must close, got %v", closed)
	}

	exits := f.sender.byType(domain.MsgExitRoom)
	if len(exits) != 1 {
		t.Fatalf("ForceExit: want one exit broadcast, got %d", len(exits))
	}
}

func TestBlacklistIsNeverReadmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	bob := f.login(t, "bob", "Bob")
	f.contacts.AddContact("alice", "bob")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if _, err := f.svc.PreJoin(ctx, bob, meeting.No, ""); err != nil {
		t.Fatalf("PreJoin: %v", err)
	}
	if err := f.svc.Join(ctx, bob, false); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	if err := f.svc.ForceExit(ctx, alice, "bob", domain.MemberStatusBlacklisted); err != nil {
		t.Fatalf("ForceExit: %v", err)
	}

	if _, err := f.svc.PreJoin(ctx, f.sessionOf(t, "bob"), meeting.No, ""); !errors.Is(err, domain.ErrBlacklisted) {
		t.Fatalf("PreJoin: blacklisted user must be rejected, got %v", err)
	}
	if err := f.svc.Invite(ctx, alice, []string{"bob"}); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if got := f.sender.byType(domain.MsgInvite); len(got) != 0 {
		t.Fatalf("Invite: blacklisted invitee must be skipped, got %d invites", len(got))
	}
	if _, err := f.svc.AcceptInvite(ctx, f.sessionOf(t, "bob"), meeting.ID); !errors.Is(err, domain.ErrInviteExpired) {
		t.Fatalf("AcceptInvite: want ErrInviteExpired without an invite, got %v", err)
	}
}

func TestInviteRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	f.login(t, "bob", "Bob")
	f.contacts.AddContact("alice", "bob")

	meeting, err := f.svc.CreateInstant(ctx, alice, "standup", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	if err := f.svc.Join(ctx, alice, true); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if err := f.svc.Invite(ctx, alice, []string{"carol"}); !errors.Is(err, domain.ErrNotContact) {
		t.Fatalf("Invite: want ErrNotContact, got %v", err)
	}

	if err := f.svc.Invite(ctx, alice, []string{"bob"}); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	invites := f.sender.byType(domain.MsgInvite)
	if len(invites) != 1 || invites[0].ReceiveUserID != "bob" {
		t.Fatalf("Invite: want one invite to bob, got %v", invites)
	}

	bob := f.sessionOf(t, "bob")
	got, err := f.svc.AcceptInvite(ctx, bob, meeting.ID)
	if err != nil || got.ID != meeting.ID {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if bob.CurrentMeetingID != meeting.ID {
		t.Fatalf("AcceptInvite: session not pointed at the meeting")
	}

	// Invites are single use.
	if _, err := f.svc.AcceptInvite(ctx, f.sessionOf(t, "bob"), meeting.ID); !errors.Is(err, domain.ErrInviteExpired) {
		t.Fatalf("AcceptInvite: second accept must fail, got %v", err)
	}
}

func TestPendingMeetingBlocksNewOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.login(t, "alice", "Alice")
	bob := f.login(t, "bob", "Bob")

	if _, err := f.svc.CreateInstant(ctx, alice, "first", domain.JoinOpen, ""); err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}
	other, err := f.svc.CreateInstant(ctx, bob, "second", domain.JoinOpen, "")
	if err != nil {
		t.Fatalf("CreateInstant: %v", err)
	}

	if _, err := f.svc.PreJoin(ctx, alice, other.No, ""); !errors.Is(err, domain.ErrPendingMeeting) {
		t.Fatalf("PreJoin: want ErrPendingMeeting, got %v", err)
	}
	if _, err := f.svc.CreateInstant(ctx, alice, "third", domain.JoinOpen, ""); !errors.Is(err, domain.ErrPendingMeeting) {
		t.Fatalf("CreateInstant: want ErrPendingMeeting, got %v", err)
	}
}
