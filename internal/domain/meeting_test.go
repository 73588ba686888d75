package domain_test

import (
	"errors"
	"testing"

	"github.com/quickmeet/signaling/internal/domain"
)

func TestGenerateMeetingNo(t *testing.T) {
	no := domain.GenerateMeetingNo()
	if len(no) != 10 {
		t.Fatalf("GenerateMeetingNo: want 10 digits, got %q", no)
	}
	for _, r := range no {
		if r < '0' || r > '9' {
			t.Fatalf("GenerateMeetingNo: non-digit %q in %q", r, no)
		}
	}
}

func TestNewInstantMeeting(t *testing.T) {
	m := domain.NewInstantMeeting("standup", "alice", domain.JoinOpen, "")
	if m.ID == "" || m.No == "" {
		t.Fatalf("NewInstantMeeting: missing identifiers: %+v", m)
	}
	if m.CreateUserID != "alice" || m.Status != domain.MeetingRunning {
		t.Fatalf("NewInstantMeeting: bad meeting: %+v", m)
	}
	if m.IsFinished() {
		t.Fatalf("IsFinished: new meeting must be running")
	}
}

func TestBusinessErrorDetection(t *testing.T) {
	if !domain.IsBusinessError(domain.ErrBlacklisted) {
		t.Fatalf("IsBusinessError: sentinel not recognised")
	}
	wrapped := errors.Join(errors.New("outer"), domain.ErrNotCreator)
	if !domain.IsBusinessError(wrapped) {
		t.Fatalf("IsBusinessError: wrapped sentinel not recognised")
	}
	if domain.IsBusinessError(errors.New("io failure")) {
		t.Fatalf("IsBusinessError: infrastructure error misclassified")
	}
}
