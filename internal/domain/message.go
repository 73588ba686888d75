package domain

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of envelope travelling over the
// realtime channel. The numeric values are part of the wire protocol
// and must not be reordered.
type MessageType int

const (
	MsgInit               MessageType = 0  // client asks for a fresh member list
	MsgJoinRoom           MessageType = 1  // member joined, carries member list
	MsgPeer               MessageType = 2  // peer bootstrap message
	MsgExitRoom           MessageType = 3  // member left, carries member list
	MsgFinishMeeting      MessageType = 4  // meeting finished
	MsgChatText           MessageType = 5  // text chat
	MsgChatMedia          MessageType = 6  // media chat
	MsgChatMediaUpdate    MessageType = 7  // media upload status update
	MsgContactApply       MessageType = 8  // contact/friend request
	MsgInvite             MessageType = 9  // meeting invitation
	MsgForceOffline       MessageType = 10 // session revoked elsewhere
	MsgVideoStateChange   MessageType = 11 // camera on/off toggle
	MsgWebRTCOffer        MessageType = 12
	MsgWebRTCAnswer       MessageType = 13
	MsgWebRTCICECandidate MessageType = 14
)

// SendToType selects the fan-out target of an envelope.
type SendToType int

const (
	SendToUser  SendToType = 0
	SendToGroup SendToType = 1
)

// Envelope is the self-describing message unit exchanged over the
// websocket and the backplane. Sender fields are always overwritten
// with the authenticated identity before routing; values supplied by
// the client are never trusted.
type Envelope struct {
	MessageType   MessageType     `json:"messageType"`
	SendToType    SendToType      `json:"messageSendToType"`
	MeetingID     string          `json:"meetingId,omitempty"`
	SendUserID    string          `json:"sendUserId,omitempty"`
	SendNickname  string          `json:"sendUserNickName,omitempty"`
	ReceiveUserID string          `json:"receiveUserId,omitempty"`
	Content       json.RawMessage `json:"messageContent,omitempty"`
	SendTime      int64           `json:"sendTime,omitempty"`
	MessageID     int64           `json:"messageId,omitempty"`
	Status        int             `json:"status,omitempty"`
	FileName      string          `json:"fileName,omitempty"`
	FileType      int             `json:"fileType,omitempty"`
	FileSize      int64           `json:"fileSize,omitempty"`
}

// NewGroupEnvelope builds a room-targeted envelope with the payload
// already marshalled.
func NewGroupEnvelope(msgType MessageType, meetingID string, content any) (*Envelope, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		MessageType: msgType,
		SendToType:  SendToGroup,
		MeetingID:   meetingID,
		Content:     raw,
		SendTime:    time.Now().UnixMilli(),
	}, nil
}

// NewUserEnvelope builds a point-to-point envelope.
func NewUserEnvelope(msgType MessageType, receiveUserID string, content any) (*Envelope, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		MessageType:   msgType,
		SendToType:    SendToUser,
		ReceiveUserID: receiveUserID,
		Content:       raw,
		SendTime:      time.Now().UnixMilli(),
	}, nil
}

// MeetingJoinPayload is the content of a MsgJoinRoom envelope.
type MeetingJoinPayload struct {
	NewMember  *RoomMember  `json:"newMember,omitempty"`
	MemberList []RoomMember `json:"meetingMemberList"`
}

// MeetingExitPayload is the content of a MsgExitRoom envelope sent by
// the membership state machine. Gateway-originated disconnect notices
// carry no payload.
type MeetingExitPayload struct {
	ExitUserID string       `json:"exitUserId"`
	ExitStatus MemberStatus `json:"exitStatus"`
	MemberList []RoomMember `json:"meetingMemberList"`
}

// InvitePayload is the content of a MsgInvite envelope.
type InvitePayload struct {
	MeetingID      string `json:"meetingId"`
	MeetingName    string `json:"meetingName"`
	InviteNickname string `json:"inviteUserName"`
}
