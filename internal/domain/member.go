package domain

import "time"

// MemberType distinguishes the meeting creator from everyone else.
type MemberType int

const (
	MemberNormal MemberType = 0
	MemberHost   MemberType = 1
)

// MemberStatus tracks how a member stands with respect to a meeting.
// Blacklisted is sticky: it survives in the durable record after the
// member disappears from the ephemeral set.
type MemberStatus int

const (
	MemberStatusNormal      MemberStatus = 0
	MemberStatusExited      MemberStatus = 1
	MemberStatusKicked      MemberStatus = 2
	MemberStatusBlacklisted MemberStatus = 3
)

// RoomMember is the ephemeral presence record kept in the shared
// session store, keyed by meeting. It is the cluster-wide source of
// truth for "who is in the meeting right now" regardless of which node
// holds the member's socket.
type RoomMember struct {
	UserID     string       `json:"userId"`
	Nickname   string       `json:"nickName"`
	JoinTime   int64        `json:"joinTime"`
	MemberType MemberType   `json:"memberType"`
	Status     MemberStatus `json:"status"`
	Sex        int          `json:"sex"`
	VideoOpen  bool         `json:"videoOpen"`
}

func NewRoomMember(sess *Session, memberType MemberType, videoOpen bool) RoomMember {
	return RoomMember{
		UserID:     sess.UserID,
		Nickname:   sess.Nickname,
		JoinTime:   time.Now().UnixMilli(),
		MemberType: memberType,
		Status:     MemberStatusNormal,
		Sex:        sess.Sex,
		VideoOpen:  videoOpen,
	}
}

// MeetingMember is the durable participation row, retained for history
// views after the meeting ends.
type MeetingMember struct {
	MeetingID     string
	UserID        string
	Nickname      string
	LastJoinTime  time.Time
	Status        MemberStatus
	MemberType    MemberType
	MeetingStatus MeetingStatus
}
