package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DeletionStatus is the lifecycle state of a scheduled deletion.
type DeletionStatus int

const (
	DeletionRemoved DeletionStatus = 1
	DeletionPending DeletionStatus = 2
	DeletionErrored DeletionStatus = 3
)

func (s DeletionStatus) String() string {
	switch s {
	case DeletionRemoved:
		return "removed"
	case DeletionPending:
		return "pending"
	case DeletionErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// PendingDeletion is a message the sweeper removes once DeleteAt has passed.
// LogMessageID optionally names a companion message in the debug channel
// that is removed together with it.
type PendingDeletion struct {
	ID           uint           `gorm:"primaryKey"`
	ChannelID    string         `gorm:"size:32;not null"`
	MessageID    string         `gorm:"size:32;not null;index"`
	DeleteAt     time.Time      `gorm:"not null;index"`
	LogMessageID *string        `gorm:"size:32"`
	Status       DeletionStatus `gorm:"not null;index"`
	ErrorLog     string         `gorm:"type:text"`
	CreatedAt    time.Time
}

func (PendingDeletion) TableName() string { return "messages_to_delete" }

// ScheduleDeletion records that messageID in channelID must be removed at deleteAt.
func (s *Store) ScheduleDeletion(ctx context.Context, channelID, messageID string, deleteAt time.Time, logMessageID string) (*PendingDeletion, error) {
	rec := &PendingDeletion{
		ChannelID: channelID,
		MessageID: messageID,
		DeleteAt:  deleteAt.UTC(),
		Status:    DeletionPending,
	}
	if logMessageID != "" {
		rec.LogMessageID = &logMessageID
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, errors.Wrapf(err, "schedule deletion of message %s", messageID)
	}
	return rec, nil
}

// OverdueDeletions returns pending rows whose DeleteAt is not after now, oldest first.
func (s *Store) OverdueDeletions(ctx context.Context, now time.Time) ([]PendingDeletion, error) {
	var recs []PendingDeletion
	err := s.db.WithContext(ctx).
		Where("status = ? AND delete_at <= ?", DeletionPending, now.UTC()).
		Order("delete_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query overdue deletions")
	}
	return recs, nil
}

// MarkDeletionDone sets the row to removed.
func (s *Store) MarkDeletionDone(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&PendingDeletion{}).
		Where("id = ?", id).
		Update("status", DeletionRemoved).Error
	return errors.Wrapf(err, "mark deletion %d done", id)
}

// MarkDeletionErrored sets the row to errored and keeps the failure text.
func (s *Store) MarkDeletionErrored(ctx context.Context, id uint, reason string) error {
	err := s.db.WithContext(ctx).Model(&PendingDeletion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": DeletionErrored, "error_log": reason}).Error
	return errors.Wrapf(err, "mark deletion %d errored", id)
}

// DeletionByMessageID returns the newest record for messageID.
func (s *Store) DeletionByMessageID(ctx context.Context, messageID string) (*PendingDeletion, error) {
	var rec PendingDeletion
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).Order("id DESC").First(&rec).Error
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "find deletion for message %s", messageID)
	}
	return &rec, nil
}

// DeletionCounts returns the number of rows per status.
func (s *Store) DeletionCounts(ctx context.Context) (map[DeletionStatus]int64, error) {
	var rows []struct {
		Status DeletionStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&PendingDeletion{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count deletions")
	}
	counts := map[DeletionStatus]int64{DeletionPending: 0, DeletionRemoved: 0, DeletionErrored: 0}
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
