package dispatch

import (
	"context"
	"log/slog"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/ws"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// errorReply is sent back on the same connection when a handler
// rejects the message on a business rule.
type errorReply struct {
	MessageType domain.MessageType `json:"messageType"`
	Error       string             `json:"error"`
}

// Dispatcher routes authenticated envelopes to handlers. The sender
// identity on every envelope is overwritten from the connection's
// session snapshot before routing, so clients cannot impersonate.
type Dispatcher struct {
	registry *Registry
	sessions *ws.Registry
	log      *slog.Logger
}

func NewDispatcher(registry *Registry, sessions *ws.Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{registry: registry, sessions: sessions, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *ws.Conn, env *domain.Envelope) {
	const op = "dispatch.Dispatcher.Dispatch"

	snap := d.sessions.Snapshot(c)
	if snap == nil {
		d.log.Warn("frame from unregistered connection dropped",
			slog.String("op", op), slog.String("conn", c.ID()))
		return
	}

	env.SendUserID = snap.UserID
	env.SendNickname = snap.Nickname
	if env.SendToType == domain.SendToGroup && env.MeetingID == "" {
		env.MeetingID = snap.CurrentMeetingID
	}

	h := d.registry.For(env.MessageType)
	if h == nil {
		d.log.Warn("no handler for message type", slog.Int("type", int(env.MessageType)))
		return
	}

	if err := h.Handle(ctx, c, env); err != nil {
		if domain.IsBusinessError(err) {
			d.log.Info("message rejected",
				slog.Int("type", int(env.MessageType)),
				slog.String("user_id", snap.UserID),
				sl.Err(err))
			if sendErr := c.SendJSON(errorReply{MessageType: env.MessageType, Error: err.Error()}); sendErr != nil {
				d.log.Warn("dropped error reply", slog.String("conn", c.ID()), sl.Err(sendErr))
			}
			return
		}
		d.log.Error("handler failed",
			slog.Int("type", int(env.MessageType)),
			slog.String("user_id", snap.UserID),
			sl.Err(err))
	}
}
