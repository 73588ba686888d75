package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quickmeet/signaling/internal/dispatch"
	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/ws"
)

type captureHandler struct {
	types []domain.MessageType
	got   []*domain.Envelope
	err   error
}

func (h *captureHandler) Types() []domain.MessageType { return h.types }

func (h *captureHandler) Handle(_ context.Context, _ *ws.Conn, env *domain.Envelope) error {
	h.got = append(h.got, env)
	return h.err
}

func TestDispatcherStampsSenderIdentity(t *testing.T) {
	sessions := ws.NewRegistry()
	c := ws.NewConn(nil, 4)
	sessions.Put("alice", c, &domain.Session{UserID: "alice", Nickname: "Alice", CurrentMeetingID: "m1"})

	h := &captureHandler{types: []domain.MessageType{domain.MsgChatText}}
	reg := dispatch.NewRegistry(nil)
	reg.Register(h)

	d := dispatch.NewDispatcher(reg, sessions, nil)
	d.Dispatch(context.Background(), c, &domain.Envelope{
		MessageType:  domain.MsgChatText,
		SendToType:   domain.SendToGroup,
		SendUserID:   "mallory",
		SendNickname: "Mallory",
	})

	if len(h.got) != 1 {
		t.Fatalf("Dispatch: handler not invoked")
	}
	env := h.got[0]
	if env.SendUserID != "alice" || env.SendNickname != "Alice" {
		t.Fatalf("Dispatch: forged sender survived: %+v", env)
	}
	if env.MeetingID != "m1" {
		t.Fatalf("Dispatch: group envelope should inherit the session's meeting, got %q", env.MeetingID)
	}
}

func TestDispatcherDropsUnregisteredConn(t *testing.T) {
	sessions := ws.NewRegistry()
	c := ws.NewConn(nil, 4)

	h := &captureHandler{types: []domain.MessageType{domain.MsgChatText}}
	reg := dispatch.NewRegistry(nil)
	reg.Register(h)

	d := dispatch.NewDispatcher(reg, sessions, nil)
	d.Dispatch(context.Background(), c, &domain.Envelope{MessageType: domain.MsgChatText})

	if len(h.got) != 0 {
		t.Fatalf("Dispatch: frame from unregistered conn must be dropped")
	}
}

func TestDispatcherFallsBackToDefault(t *testing.T) {
	sessions := ws.NewRegistry()
	c := ws.NewConn(nil, 4)
	sessions.Put("alice", c, &domain.Session{UserID: "alice"})

	fallback := &captureHandler{}
	reg := dispatch.NewRegistry(nil)
	reg.SetDefault(fallback)

	d := dispatch.NewDispatcher(reg, sessions, nil)
	d.Dispatch(context.Background(), c, &domain.Envelope{MessageType: domain.MsgVideoStateChange})

	if len(fallback.got) != 1 {
		t.Fatalf("Dispatch: default handler not used for unclaimed type")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	first := &captureHandler{types: []domain.MessageType{domain.MsgChatText}}
	second := &captureHandler{types: []domain.MessageType{domain.MsgChatText}}

	reg := dispatch.NewRegistry(nil)
	reg.Register(first)
	reg.Register(second)

	sessions := ws.NewRegistry()
	c := ws.NewConn(nil, 4)
	sessions.Put("alice", c, &domain.Session{UserID: "alice"})

	d := dispatch.NewDispatcher(reg, sessions, nil)
	d.Dispatch(context.Background(), c, &domain.Envelope{MessageType: domain.MsgChatText})

	if len(first.got) != 0 || len(second.got) != 1 {
		t.Fatalf("Register: later registration must win (first=%d second=%d)", len(first.got), len(second.got))
	}
}

func TestDispatcherBusinessErrorKeepsConnectionAlive(t *testing.T) {
	sessions := ws.NewRegistry()
	c := ws.NewConn(nil, 1)
	sessions.Put("alice", c, &domain.Session{UserID: "alice"})

	h := &captureHandler{
		types: []domain.MessageType{domain.MsgExitRoom},
		err:   domain.ErrNotCreator,
	}
	reg := dispatch.NewRegistry(nil)
	reg.Register(h)

	d := dispatch.NewDispatcher(reg, sessions, nil)
	d.Dispatch(context.Background(), c, &domain.Envelope{MessageType: domain.MsgExitRoom})

	select {
	case <-c.Done():
		t.Fatalf("Dispatch: business error must not close the connection")
	default:
	}

	// The single-slot buffer now holds the error reply.
	if err := c.Send([]byte("x")); !errors.Is(err, ws.ErrSendBufferFull) {
		t.Fatalf("Dispatch: expected an error reply queued to the sender, got send err=%v", err)
	}
}
