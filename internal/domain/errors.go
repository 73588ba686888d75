package domain

import "errors"

// BusinessError marks rule violations that must be surfaced to the
// caller without terminating the connection or the dispatching task.
type BusinessError struct {
	Msg string
}

func (e *BusinessError) Error() string { return e.Msg }

// NewBusinessError wraps a human-readable rule violation.
func NewBusinessError(msg string) error {
	return &BusinessError{Msg: msg}
}

// IsBusinessError reports whether err is a rule violation rather than
// an infrastructure failure.
func IsBusinessError(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

var (
	ErrNotCreator      = NewBusinessError("only the meeting creator may do this")
	ErrBlacklisted     = NewBusinessError("blacklisted from this meeting")
	ErrMeetingFinished = NewBusinessError("meeting already finished")
	ErrMeetingNotFound = NewBusinessError("meeting not found")
	ErrPendingMeeting  = NewBusinessError("you have an unfinished meeting")
	ErrWrongPassword   = NewBusinessError("wrong meeting password")
	ErrNotContact      = NewBusinessError("user is not in your contacts")
	ErrInviteExpired   = NewBusinessError("invitation expired or not found")
	ErrUserOffline     = NewBusinessError("user is not online")
)
