package model

import "time"

type Meeting struct {
	ID           string `gorm:"size:36;primaryKey"`
	No           string `gorm:"size:16;index;not null"`
	Name         string `gorm:"size:255;not null"`
	CreateUserID string `gorm:"size:36;index;not null"`
	JoinType     int    `gorm:"not null"`
	JoinPassword string `gorm:"size:64"`
	StartTime    time.Time
	EndTime      *time.Time
	Status       int `gorm:"index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MeetingMember struct {
	MeetingID     string `gorm:"size:36;primaryKey"`
	UserID        string `gorm:"size:36;primaryKey"`
	Nickname      string `gorm:"size:255;not null"`
	LastJoinTime  time.Time
	Status        int `gorm:"not null"`
	MemberType    int `gorm:"not null"`
	MeetingStatus int `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Contact struct {
	UserID    string `gorm:"size:36;primaryKey"`
	ContactID string `gorm:"size:36;primaryKey"`
	Status    int    `gorm:"not null"`
	CreatedAt time.Time
}
