package backplane

import (
	"context"
	"sync"

	"github.com/quickmeet/signaling/internal/domain"
)

// Local is the single-node backplane: Publish invokes the delivery
// callback inline, so delivery completes before Publish returns.
type Local struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Publish(ctx context.Context, env *domain.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	deliver := l.deliver
	l.mu.RUnlock()
	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, deliver DeliverFunc) error {
	l.mu.Lock()
	l.deliver = deliver
	l.mu.Unlock()
	return nil
}

func (l *Local) Close() error { return nil }
