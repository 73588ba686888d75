package backplane

import (
	"context"

	"github.com/quickmeet/signaling/internal/domain"
)

// DeliverFunc attempts local delivery of an envelope on this node.
type DeliverFunc func(env *domain.Envelope)

// Backplane fans envelopes out to every node in the cluster. Publish
// returns once the message is handed off; delivery to recipients is
// best effort and asynchronous.
type Backplane interface {
	Publish(ctx context.Context, env *domain.Envelope) error
	Subscribe(ctx context.Context, deliver DeliverFunc) error
	Close() error
}
