package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/internal/repository/model"
)

const contactStatusNormal = 0

type PostgresMeetingRepository struct {
	db *gorm.DB
}

func NewPostgresMeetingRepository(db *gorm.DB) *PostgresMeetingRepository {
	return &PostgresMeetingRepository{db: db}
}

func (r *PostgresMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting == nil {
		return errors.New("meeting is nil")
	}
	return r.db.WithContext(ctx).Create(toModelMeeting(meeting)).Error
}

func (r *PostgresMeetingRepository) GetByID(ctx context.Context, id string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m model.Meeting
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, err
	}
	return toDomainMeeting(&m), nil
}

func (r *PostgresMeetingRepository) GetRunningByNo(ctx context.Context, no string) (*domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m model.Meeting
	err := r.db.WithContext(ctx).
		First(&m, "no = ? AND status = ?", no, int(domain.MeetingRunning)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, err
	}
	return toDomainMeeting(&m), nil
}

func (r *PostgresMeetingRepository) Update(ctx context.Context, meeting *domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if meeting == nil {
		return errors.New("meeting is nil")
	}

	m := toModelMeeting(meeting)
	updates := map[string]any{
		"name":   m.Name,
		"status": m.Status,
	}
	if m.EndTime == nil {
		updates["end_time"] = gorm.Expr("NULL")
	} else {
		updates["end_time"] = m.EndTime
	}

	res := r.db.WithContext(ctx).Model(&model.Meeting{}).Where("id = ?", m.ID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

type PostgresMemberRepository struct {
	db *gorm.DB
}

func NewPostgresMemberRepository(db *gorm.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

func (r *PostgresMemberRepository) Upsert(ctx context.Context, member *domain.MeetingMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if member == nil {
		return errors.New("member is nil")
	}

	m := toModelMember(member)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.MeetingMember
		err := tx.First(&existing, "meeting_id = ? AND user_id = ?", m.MeetingID, m.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(m).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&model.MeetingMember{}).
			Where("meeting_id = ? AND user_id = ?", m.MeetingID, m.UserID).
			Updates(map[string]any{
				"nickname":       m.Nickname,
				"last_join_time": m.LastJoinTime,
				"status":         m.Status,
				"member_type":    m.MemberType,
				"meeting_status": m.MeetingStatus,
			}).Error
	})
}

func (r *PostgresMemberRepository) Get(ctx context.Context, meetingID, userID string) (*domain.MeetingMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m model.MeetingMember
	err := r.db.WithContext(ctx).First(&m, "meeting_id = ? AND user_id = ?", meetingID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return toDomainMember(&m), nil
}

func (r *PostgresMemberRepository) ListByMeeting(ctx context.Context, meetingID string) ([]domain.MeetingMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.MeetingMember
	if err := r.db.WithContext(ctx).Find(&rows, "meeting_id = ?", meetingID).Error; err != nil {
		return nil, err
	}
	members := make([]domain.MeetingMember, 0, len(rows))
	for i := range rows {
		members = append(members, *toDomainMember(&rows[i]))
	}
	return members, nil
}

func (r *PostgresMemberRepository) UpdateStatus(ctx context.Context, meetingID, userID string, status domain.MemberStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.MeetingMember{}).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		Update("status", int(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMemberRepository) UpdateMeetingStatus(ctx context.Context, meetingID string, status domain.MeetingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Model(&model.MeetingMember{}).
		Where("meeting_id = ?", meetingID).
		Update("meeting_status", int(status)).Error
}

type PostgresContactRepository struct {
	db *gorm.DB
}

func NewPostgresContactRepository(db *gorm.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) ListContactIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Contact{}).
		Where("user_id = ? AND status = ?", userID, contactStatusNormal).
		Pluck("contact_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func toModelMeeting(meeting *domain.Meeting) *model.Meeting {
	var endTime *time.Time
	if !meeting.EndTime.IsZero() {
		t := meeting.EndTime.UTC()
		endTime = &t
	}
	return &model.Meeting{
		ID:           meeting.ID,
		No:           meeting.No,
		Name:         meeting.Name,
		CreateUserID: meeting.CreateUserID,
		JoinType:     int(meeting.JoinType),
		JoinPassword: meeting.JoinPassword,
		StartTime:    meeting.StartTime.UTC(),
		EndTime:      endTime,
		Status:       int(meeting.Status),
	}
}

func toDomainMeeting(m *model.Meeting) *domain.Meeting {
	var endTime time.Time
	if m.EndTime != nil {
		endTime = m.EndTime.UTC()
	}
	return &domain.Meeting{
		ID:           m.ID,
		No:           m.No,
		Name:         m.Name,
		CreateUserID: m.CreateUserID,
		JoinType:     domain.JoinType(m.JoinType),
		JoinPassword: m.JoinPassword,
		CreateTime:   m.CreatedAt.UTC(),
		StartTime:    m.StartTime.UTC(),
		EndTime:      endTime,
		Status:       domain.MeetingStatus(m.Status),
	}
}

func toModelMember(member *domain.MeetingMember) *model.MeetingMember {
	return &model.MeetingMember{
		MeetingID:     member.MeetingID,
		UserID:        member.UserID,
		Nickname:      member.Nickname,
		LastJoinTime:  member.LastJoinTime.UTC(),
		Status:        int(member.Status),
		MemberType:    int(member.MemberType),
		MeetingStatus: int(member.MeetingStatus),
	}
}

func toDomainMember(m *model.MeetingMember) *domain.MeetingMember {
	return &domain.MeetingMember{
		MeetingID:     m.MeetingID,
		UserID:        m.UserID,
		Nickname:      m.Nickname,
		LastJoinTime:  m.LastJoinTime.UTC(),
		Status:        domain.MemberStatus(m.Status),
		MemberType:    domain.MemberType(m.MemberType),
		MeetingStatus: domain.MeetingStatus(m.MeetingStatus),
	}
}
