package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// Peers ties the session registry, the room registry and the shared
// session store together: it is the single place that may attach or
// detach connections and the local delivery end of the backplane.
type Peers struct {
	reg     *Registry
	rooms   *Rooms
	store   session.Store
	publish func(ctx context.Context, env *domain.Envelope) error
	log     *slog.Logger
}

func NewPeers(reg *Registry, rooms *Rooms, store session.Store, log *slog.Logger) *Peers {
	if log == nil {
		log = slog.Default()
	}
	return &Peers{reg: reg, rooms: rooms, store: store, log: log}
}

// SetPublisher wires the backplane in after construction; wiring is
// circular at runtime (the backplane delivers back through Deliver).
func (p *Peers) SetPublisher(publish func(ctx context.Context, env *domain.Envelope) error) {
	p.publish = publish
}

// Publish hands an envelope to the backplane. Returns once the message
// is handed off, not once recipients have received it.
func (p *Peers) Publish(ctx context.Context, env *domain.Envelope) error {
	if p.publish == nil {
		p.Deliver(env)
		return nil
	}
	return p.publish(ctx, env)
}

// Register binds the user to the new connection, enforcing
// one-connection-per-user: a previous connection loses its room
// membership and its attributes (so its teardown stays silent) before
// being force-closed. When the snapshot names a current meeting the
// connection joins that room idempotently.
func (p *Peers) Register(userID string, c *Conn, snap *domain.Session) {
	if prev := p.reg.Put(userID, c, snap); prev != nil {
		if old := p.reg.Snapshot(prev); old != nil && old.CurrentMeetingID != "" {
			p.rooms.Leave(old.CurrentMeetingID, prev)
		}
		p.reg.ClearSnapshot(prev)
		prev.Close()
		p.log.Info("evicted previous connection", slog.String("user_id", userID), slog.String("conn", prev.ID()))
	}

	p.log.Info("user online", slog.String("user_id", userID), slog.String("conn", c.ID()))

	if snap != nil && snap.CurrentMeetingID != "" {
		p.rooms.Join(snap.CurrentMeetingID, c)
	}
}

// Unregister runs the teardown path for a dropped connection. It is
// idempotent: a connection whose snapshot was already cleared yields
// empty results and no further action. The returned meeting id tells
// the gateway whether a leave notice is due.
func (p *Peers) Unregister(c *Conn) (userID, meetingID, nickname string) {
	snap := p.reg.Snapshot(c)
	if snap == nil {
		return "", "", ""
	}

	if snap.CurrentMeetingID != "" {
		p.rooms.Leave(snap.CurrentMeetingID, c)
	}
	p.reg.RemoveIfCurrent(snap.UserID, c)

	p.log.Info("user offline", slog.String("user_id", snap.UserID), slog.String("conn", c.ID()))
	return snap.UserID, snap.CurrentMeetingID, snap.Nickname
}

// CloseUser force-closes a user's transport (kick, blacklist, forced
// offline) after detaching it from any room.
func (p *Peers) CloseUser(userID string) {
	c := p.reg.Get(userID)
	if c == nil {
		return
	}
	if snap := p.reg.Snapshot(c); snap != nil && snap.CurrentMeetingID != "" {
		p.rooms.Leave(snap.CurrentMeetingID, c)
	}
	p.reg.Remove(userID)
	c.Close()
	p.log.Info("connection closed", slog.String("user_id", userID))
}

// AttachRoom joins the user's connection to a meeting room. No-op when
// the user has no transport connection yet.
func (p *Peers) AttachRoom(meetingID, userID string) {
	p.rooms.Join(meetingID, p.reg.Get(userID))
}

// DetachRoom removes the user's connection from a meeting room.
func (p *Peers) DetachRoom(meetingID, userID string) {
	p.rooms.Leave(meetingID, p.reg.Get(userID))
}

// SetCurrentMeeting updates the cached snapshot of a live connection
// after an out-of-band meeting switch.
func (p *Peers) SetCurrentMeeting(userID, meetingID string) {
	c := p.reg.Get(userID)
	if c == nil {
		return
	}
	if snap := p.reg.Snapshot(c); snap != nil {
		next := snap.Clone()
		next.CurrentMeetingID = meetingID
		p.reg.SetSnapshot(c, next)
	}
}

// Deliver attempts local delivery of an envelope according to its
// fan-out type. A target with no locally attached connection is a
// silent no-op; another node may own the socket.
func (p *Peers) Deliver(env *domain.Envelope) {
	if env == nil {
		return
	}
	switch env.SendToType {
	case SendToGroup:
		p.deliverToRoom(env)
	case SendToUser:
		p.deliverToUser(env)
	}
}

func (p *Peers) deliverToRoom(env *domain.Envelope) {
	if env.MeetingID == "" {
		p.log.Warn("group envelope without meeting id", slog.Int("type", int(env.MessageType)))
		return
	}
	members := p.rooms.Members(env.MeetingID)
	if len(members) == 0 {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.log.Error("marshal envelope", sl.Err(err))
		return
	}
	for _, c := range members {
		if err := c.Send(data); err != nil {
			p.log.Warn("dropped room frame",
				slog.String("meeting_id", env.MeetingID),
				slog.String("conn", c.ID()),
				sl.Err(err))
		}
	}
}

func (p *Peers) deliverToUser(env *domain.Envelope) {
	if env.ReceiveUserID == "" {
		p.log.Warn("user envelope without receiver", slog.Int("type", int(env.MessageType)))
		return
	}
	c := p.reg.Get(env.ReceiveUserID)
	if c == nil {
		p.log.Debug("receiver not attached locally", slog.String("user_id", env.ReceiveUserID))
		return
	}
	if err := c.SendJSON(env); err != nil {
		p.log.Warn("dropped user frame", slog.String("user_id", env.ReceiveUserID), sl.Err(err))
	}
}

// SendMemberUpdate broadcasts the full member list of a meeting so all
// clients converge on one view, flagging newUserID as the new member.
func (p *Peers) SendMemberUpdate(ctx context.Context, meetingID, newUserID, nickname string) {
	newMember, err := p.store.GetMember(ctx, meetingID, newUserID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		p.log.Error("load member", slog.String("meeting_id", meetingID), sl.Err(err))
		return
	}
	members, err := p.store.ListMembers(ctx, meetingID)
	if err != nil {
		p.log.Error("list members", slog.String("meeting_id", meetingID), sl.Err(err))
		return
	}
	memberList := members[:0:0]
	for _, m := range members {
		if m.Status == domain.MemberStatusNormal {
			memberList = append(memberList, m)
		}
	}

	env, err := domain.NewGroupEnvelope(domain.MsgJoinRoom, meetingID, domain.MeetingJoinPayload{
		NewMember:  newMember,
		MemberList: memberList,
	})
	if err != nil {
		p.log.Error("build member update", sl.Err(err))
		return
	}
	env.SendUserID = newUserID
	env.SendNickname = nickname

	if err := p.Publish(ctx, env); err != nil {
		p.log.Error("publish member update", slog.String("meeting_id", meetingID), sl.Err(err))
	}
}

// Aliases so callers of Peers read naturally next to domain constants.
const (
	SendToUser  = domain.SendToUser
	SendToGroup = domain.SendToGroup
)
