package dispatch

import (
	"context"
	"log/slog"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/ws"
)

// Handler processes one or more message types. Returned business
// errors are surfaced to the sender; any error leaves the connection
// alive.
type Handler interface {
	Types() []domain.MessageType
	Handle(ctx context.Context, c *ws.Conn, env *domain.Envelope) error
}

// Registry maps message types to handlers. Registering a type twice
// logs the conflict and the later registration wins.
type Registry struct {
	handlers map[domain.MessageType]Handler
	fallback Handler
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		handlers: make(map[domain.MessageType]Handler),
		log:      log,
	}
}

func (r *Registry) Register(h Handler) {
	for _, t := range h.Types() {
		if _, taken := r.handlers[t]; taken {
			r.log.Warn("message type registered twice, keeping the later handler", slog.Int("type", int(t)))
		}
		r.handlers[t] = h
	}
}

// SetDefault installs the handler used for unclaimed message types.
func (r *Registry) SetDefault(h Handler) {
	r.fallback = h
}

// For resolves the handler for a message type, falling back to the
// default. Returns nil only when no default is set.
func (r *Registry) For(t domain.MessageType) Handler {
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}
