package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Meeting mirrors the portal's meetings table; only the columns the hub reads.
type Meeting struct {
	ID     string `gorm:"primaryKey"`
	Status string
}

func (Meeting) TableName() string { return "meetings" }

// MeetingParticipant is one attendance row. LeftAt stays NULL while the user is inside.
type MeetingParticipant struct {
	ID        uint `gorm:"primaryKey"`
	MeetingID string
	UserID    string
	Role      string
	JoinedAt  *time.Time
	LeftAt    *time.Time
}

func (MeetingParticipant) TableName() string { return "meeting_participants" }

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenPostgres connects to the portal database.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func (s *GormStore) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	var m Meeting
	err := meetingByID(s.db.WithContext(ctx), id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrMeetingNotFound
	}
	if err != nil {
		return nil, err
	}

	var hosts int64
	err = presentHosts(s.db.WithContext(ctx), id).Count(&hosts).Error
	if err != nil {
		return nil, err
	}
	return &domain.Meeting{
		ID:            id,
		Status:        domain.MeetingStatus(m.Status),
		HasJoinedHost: hosts > 0,
	}, nil
}

func meetingByID(tx *gorm.DB, id domain.MeetingID) *gorm.DB {
	return tx.Where("id = ?", string(id))
}

// presentHosts selects host rows that joined and have not left yet.
func presentHosts(tx *gorm.DB, id domain.MeetingID) *gorm.DB {
	return tx.Model(&MeetingParticipant{}).
		Where("meeting_id = ? AND role = ? AND joined_at IS NOT NULL AND left_at IS NULL", string(id), string(domain.RoleHost))
}
