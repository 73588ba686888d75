package converter

import (
	"github.com/quickmeet/signaling/internal/domain"
)

type MeetingAPI struct {
	ID        string `json:"id"`
	No        string `json:"meetingNo"`
	Name      string `json:"meetingName"`
	CreatorID string `json:"createUserId"`
	JoinType  int    `json:"joinType"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime,omitempty"`
	Status    int    `json:"status"`
}

func MeetingToApi(m *domain.Meeting) *MeetingAPI {
	if m == nil {
		return nil
	}
	api := &MeetingAPI{
		ID:        m.ID,
		No:        m.No,
		Name:      m.Name,
		CreatorID: m.CreateUserID,
		JoinType:  int(m.JoinType),
		StartTime: m.StartTime.UnixMilli(),
		Status:    int(m.Status),
	}
	if !m.EndTime.IsZero() {
		api.EndTime = m.EndTime.UnixMilli()
	}
	return api
}
