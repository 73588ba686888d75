package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/service"
	"github.com/quickmeet/signaling/internal/session"
	"github.com/quickmeet/signaling/internal/ws"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// InitHandler answers a client's request for a fresh member list. The
// session is re-read from the shared store rather than trusted from
// the cached snapshot, so a meeting switch done through REST on
// another node is picked up.
type InitHandler struct {
	store    session.Store
	sessions *ws.Registry
	peers    *ws.Peers
}

func NewInitHandler(store session.Store, sessions *ws.Registry, peers *ws.Peers) *InitHandler {
	return &InitHandler{store: store, sessions: sessions, peers: peers}
}

func (h *InitHandler) Types() []domain.MessageType {
	return []domain.MessageType{domain.MsgInit}
}

func (h *InitHandler) Handle(ctx context.Context, c *ws.Conn, env *domain.Envelope) error {
	const op = "dispatch.InitHandler.Handle"

	token, err := h.store.GetTokenForUser(ctx, env.SendUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sess, err := h.store.GetSessionByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	h.sessions.SetSnapshot(c, sess)

	if sess.CurrentMeetingID == "" {
		return nil
	}
	h.peers.AttachRoom(sess.CurrentMeetingID, sess.UserID)
	h.peers.SendMemberUpdate(ctx, sess.CurrentMeetingID, sess.UserID, sess.Nickname)
	return nil
}

// MeetingHandler delegates lifecycle messages to the meeting service.
type MeetingHandler struct {
	svc      *service.MeetingService
	sessions *ws.Registry
}

func NewMeetingHandler(svc *service.MeetingService, sessions *ws.Registry) *MeetingHandler {
	return &MeetingHandler{svc: svc, sessions: sessions}
}

func (h *MeetingHandler) Types() []domain.MessageType {
	return []domain.MessageType{domain.MsgExitRoom, domain.MsgFinishMeeting}
}

func (h *MeetingHandler) Handle(ctx context.Context, c *ws.Conn, env *domain.Envelope) error {
	snap := h.sessions.Snapshot(c)
	if snap == nil {
		return nil
	}

	switch env.MessageType {
	case domain.MsgExitRoom:
		return h.svc.Exit(ctx, snap.Clone(), domain.MemberStatusExited)
	case domain.MsgFinishMeeting:
		meetingID := env.MeetingID
		if meetingID == "" {
			meetingID = snap.CurrentMeetingID
		}
		return h.svc.Finish(ctx, meetingID, snap.UserID)
	}
	return nil
}

// SignalingHandler relays WebRTC negotiation between two peers. The
// payload must parse as an SDP or ICE candidate; a missing receiver is
// logged and dropped, the sender just retries negotiation.
type SignalingHandler struct {
	peers *ws.Peers
	log   *slog.Logger
}

func NewSignalingHandler(peers *ws.Peers, log *slog.Logger) *SignalingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingHandler{peers: peers, log: log}
}

func (h *SignalingHandler) Types() []domain.MessageType {
	return []domain.MessageType{domain.MsgWebRTCOffer, domain.MsgWebRTCAnswer, domain.MsgWebRTCICECandidate}
}

func (h *SignalingHandler) Handle(ctx context.Context, _ *ws.Conn, env *domain.Envelope) error {
	if env.ReceiveUserID == "" {
		h.log.Warn("signaling frame without receiver dropped", slog.Int("type", int(env.MessageType)))
		return nil
	}

	var payload domain.SignalPayload
	if err := json.Unmarshal(env.Content, &payload); err != nil {
		h.log.Warn("unparseable signaling payload dropped", sl.Err(err))
		return nil
	}
	switch env.MessageType {
	case domain.MsgWebRTCOffer, domain.MsgWebRTCAnswer:
		if payload.SDP == nil || payload.SDP.SDP == "" {
			h.log.Warn("signaling frame without sdp dropped", slog.Int("type", int(env.MessageType)))
			return nil
		}
	case domain.MsgWebRTCICECandidate:
		if payload.Candidate == nil {
			h.log.Warn("signaling frame without candidate dropped")
			return nil
		}
	}

	env.SendToType = domain.SendToUser
	return h.peers.Publish(ctx, env)
}

// ForwardHandler is the default: anything without a dedicated handler
// goes straight to the backplane for fan-out.
type ForwardHandler struct {
	peers *ws.Peers
}

func NewForwardHandler(peers *ws.Peers) *ForwardHandler {
	return &ForwardHandler{peers: peers}
}

func (h *ForwardHandler) Types() []domain.MessageType { return nil }

func (h *ForwardHandler) Handle(ctx context.Context, _ *ws.Conn, env *domain.Envelope) error {
	return h.peers.Publish(ctx, env)
}
