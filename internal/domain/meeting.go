package domain

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle of a meeting. Finished is terminal.
type MeetingStatus int

const (
	MeetingRunning  MeetingStatus = 0
	MeetingFinished MeetingStatus = 1
)

// JoinType controls admission to a meeting.
type JoinType int

const (
	JoinOpen     JoinType = 0
	JoinPassword JoinType = 1
)

const meetingNoLength = 10

// Meeting is the durable meeting record.
type Meeting struct {
	ID           string
	No           string
	Name         string
	CreateUserID string
	JoinType     JoinType
	JoinPassword string
	CreateTime   time.Time
	StartTime    time.Time
	EndTime      time.Time
	Status       MeetingStatus
}

// NewInstantMeeting constructs a running meeting created ad hoc by its
// host, with a generated numeric meeting number users can dial.
func NewInstantMeeting(name, createUserID string, joinType JoinType, joinPassword string) *Meeting {
	now := time.Now().UTC()
	return &Meeting{
		ID:           uuid.New().String(),
		No:           GenerateMeetingNo(),
		Name:         name,
		CreateUserID: createUserID,
		JoinType:     joinType,
		JoinPassword: joinPassword,
		CreateTime:   now,
		StartTime:    now,
		Status:       MeetingRunning,
	}
}

func (m *Meeting) IsFinished() bool {
	return m != nil && m.Status == MeetingFinished
}

// GenerateMeetingNo produces the dial-in number shown to users.
func GenerateMeetingNo() string {
	var b strings.Builder
	b.Grow(meetingNoLength)
	for i := 0; i < meetingNoLength; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}
