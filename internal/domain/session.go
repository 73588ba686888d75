package domain

// Session is the cached identity of a logged-in user. The
// authoritative copy lives in the shared session store; copies attached
// to a live connection are a read optimization and may be stale, the
// CurrentMeetingID field in particular.
type Session struct {
	UserID           string `json:"userId"`
	Nickname         string `json:"nickName"`
	Sex              int    `json:"sex"`
	IsAdmin          bool   `json:"admin"`
	CurrentMeetingID string `json:"currentMeetingId,omitempty"`
	Token            string `json:"token,omitempty"`
}

// Clone returns a copy so callers can mutate without racing readers of
// the cached snapshot.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
