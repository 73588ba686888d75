package ws

import (
	"sync"

	"github.com/quickmeet/signaling/internal/domain"
)

// Registry is the ground-truth mapping between an authenticated user,
// their live connection and the cached session snapshot. Both maps are
// concurrent so unrelated users never contend; entries are keyed so a
// stale teardown cannot delete a fresher connection.
type Registry struct {
	users     sync.Map // userID -> *Conn
	snapshots sync.Map // *Conn -> *domain.Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Put binds userID to c and attaches the snapshot. The previous
// connection for the user, if different, is returned so the caller can
// evict it.
func (r *Registry) Put(userID string, c *Conn, snap *domain.Session) (prev *Conn) {
	r.snapshots.Store(c, snap)
	old, loaded := r.users.Swap(userID, c)
	if !loaded {
		return nil
	}
	if oldConn := old.(*Conn); oldConn != c {
		return oldConn
	}
	return nil
}

func (r *Registry) Get(userID string) *Conn {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	return v.(*Conn)
}

// Snapshot returns the cached session attached to c, nil when the
// connection was never registered or already cleared.
func (r *Registry) Snapshot(c *Conn) *domain.Session {
	v, ok := r.snapshots.Load(c)
	if !ok {
		return nil
	}
	return v.(*domain.Session)
}

// SetSnapshot replaces the cached session of a live connection.
func (r *Registry) SetSnapshot(c *Conn, snap *domain.Session) {
	r.snapshots.Store(c, snap)
}

// ClearSnapshot detaches the session from c, suppressing any further
// teardown notification for it.
func (r *Registry) ClearSnapshot(c *Conn) {
	r.snapshots.Delete(c)
}

func (r *Registry) Remove(userID string) {
	if v, ok := r.users.LoadAndDelete(userID); ok {
		r.snapshots.Delete(v.(*Conn))
	}
}

// RemoveIfCurrent deletes the user entry only when it still points at
// c, so teardown of an evicted connection cannot unregister the
// reconnect that replaced it. Reports whether the entry was removed.
func (r *Registry) RemoveIfCurrent(userID string, c *Conn) bool {
	removed := r.users.CompareAndDelete(userID, c)
	r.snapshots.Delete(c)
	return removed
}

func (r *Registry) IsOnline(userID string) bool {
	return r.Get(userID) != nil
}

func (r *Registry) OnlineUserIDs() []string {
	var ids []string
	r.users.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids
}

func (r *Registry) OnlineCount() int {
	n := 0
	r.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
