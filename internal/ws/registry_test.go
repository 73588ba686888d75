package ws

import (
	"testing"

	"github.com/quickmeet/signaling/internal/domain"
)

func TestRegistryPutReturnsEvictedConn(t *testing.T) {
	reg := NewRegistry()
	first := NewConn(nil, 1)
	second := NewConn(nil, 1)

	if prev := reg.Put("u1", first, &domain.Session{UserID: "u1"}); prev != nil {
		t.Fatalf("Put: expected no previous conn, got %v", prev.ID())
	}
	prev := reg.Put("u1", second, &domain.Session{UserID: "u1"})
	if prev != first {
		t.Fatalf("Put: expected first conn back on re-login")
	}
	if got := reg.Get("u1"); got != second {
		t.Fatalf("Get: expected the newer conn")
	}
}

func TestRegistryRemoveIfCurrentIgnoresStaleConn(t *testing.T) {
	reg := NewRegistry()
	stale := NewConn(nil, 1)
	fresh := NewConn(nil, 1)

	reg.Put("u1", stale, &domain.Session{UserID: "u1"})
	reg.Put("u1", fresh, &domain.Session{UserID: "u1"})

	if reg.RemoveIfCurrent("u1", stale) {
		t.Fatalf("RemoveIfCurrent: stale conn must not unregister the reconnect")
	}
	if !reg.IsOnline("u1") {
		t.Fatalf("IsOnline: user must survive stale teardown")
	}
	if !reg.RemoveIfCurrent("u1", fresh) {
		t.Fatalf("RemoveIfCurrent: current conn should remove the entry")
	}
	if reg.IsOnline("u1") {
		t.Fatalf("IsOnline: user should be gone")
	}
}

func TestRegistrySnapshotLifecycle(t *testing.T) {
	reg := NewRegistry()
	c := NewConn(nil, 1)
	sess := &domain.Session{UserID: "u1", Nickname: "alice"}

	reg.Put("u1", c, sess)
	if got := reg.Snapshot(c); got == nil || got.Nickname != "alice" {
		t.Fatalf("Snapshot: expected attached session")
	}

	next := sess.Clone()
	next.CurrentMeetingID = "m1"
	reg.SetSnapshot(c, next)
	if got := reg.Snapshot(c); got.CurrentMeetingID != "m1" {
		t.Fatalf("SetSnapshot: update not visible")
	}

	reg.ClearSnapshot(c)
	if reg.Snapshot(c) != nil {
		t.Fatalf("ClearSnapshot: snapshot should be gone")
	}
}

func TestRegistryOnlineCount(t *testing.T) {
	reg := NewRegistry()
	reg.Put("u1", NewConn(nil, 1), &domain.Session{UserID: "u1"})
	reg.Put("u2", NewConn(nil, 1), &domain.Session{UserID: "u2"})

	if n := reg.OnlineCount(); n != 2 {
		t.Fatalf("OnlineCount: want 2, got %d", n)
	}
	ids := reg.OnlineUserIDs()
	if len(ids) != 2 {
		t.Fatalf("OnlineUserIDs: want 2 ids, got %v", ids)
	}
}
