package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStat holds the activity counters of one user. Counters only ever move
// by the deltas given to AddUserStats.
type UserStat struct {
	UserID            string `gorm:"primaryKey;size:32"`
	Nickname          string `gorm:"size:100"`
	TotalMessages     int64  `gorm:"not null"`
	TotalWords        int64  `gorm:"not null"`
	MessagesRemoved   int64  `gorm:"not null"`
	MessagesEdited    int64  `gorm:"not null"`
	TotalSwears       int64  `gorm:"not null"`
	ReactionsGiven    int64  `gorm:"not null"`
	ReactionsReceived int64  `gorm:"not null"`
	VoiceSeconds      int64  `gorm:"not null"`
	StreamingSeconds  int64  `gorm:"not null"`
	LastUpdated       time.Time
}

// StatDelta is an increment to apply to a UserStat row. Negative values are
// allowed (reaction removal).
type StatDelta struct {
	Nickname          string
	Messages          int64
	Words             int64
	Removed           int64
	Edited            int64
	Swears            int64
	ReactionsGiven    int64
	ReactionsReceived int64
	VoiceSeconds      int64
	StreamingSeconds  int64
}

// StatTotals aggregates every user's counters.
type StatTotals struct {
	Users             int64
	TotalMessages     int64
	TotalWords        int64
	MessagesRemoved   int64
	MessagesEdited    int64
	TotalSwears       int64
	ReactionsGiven    int64
	ReactionsReceived int64
	VoiceSeconds      int64
	StreamingSeconds  int64
}

// WordsPerMessage returns the average, or 0 without messages.
func WordsPerMessage(words, messages int64) float64 {
	if messages <= 0 {
		return 0
	}
	return float64(words) / float64(messages)
}

// AddUserStats adds d to the user's counters in a single upsert statement, so
// concurrent increments to the same row never overwrite each other.
func (s *Store) AddUserStats(ctx context.Context, userID string, d StatDelta, now time.Time) error {
	now = now.UTC()
	row := UserStat{
		UserID:            userID,
		Nickname:          d.Nickname,
		TotalMessages:     d.Messages,
		TotalWords:        d.Words,
		MessagesRemoved:   d.Removed,
		MessagesEdited:    d.Edited,
		TotalSwears:       d.Swears,
		ReactionsGiven:    d.ReactionsGiven,
		ReactionsReceived: d.ReactionsReceived,
		VoiceSeconds:      d.VoiceSeconds,
		StreamingSeconds:  d.StreamingSeconds,
		LastUpdated:       now,
	}
	updates := map[string]interface{}{
		"total_messages":     gorm.Expr("total_messages + ?", d.Messages),
		"total_words":        gorm.Expr("total_words + ?", d.Words),
		"messages_removed":   gorm.Expr("messages_removed + ?", d.Removed),
		"messages_edited":    gorm.Expr("messages_edited + ?", d.Edited),
		"total_swears":       gorm.Expr("total_swears + ?", d.Swears),
		"reactions_given":    gorm.Expr("reactions_given + ?", d.ReactionsGiven),
		"reactions_received": gorm.Expr("reactions_received + ?", d.ReactionsReceived),
		"voice_seconds":      gorm.Expr("voice_seconds + ?", d.VoiceSeconds),
		"streaming_seconds":  gorm.Expr("streaming_seconds + ?", d.StreamingSeconds),
		"last_updated":       now,
	}
	if d.Nickname != "" {
		updates["nickname"] = d.Nickname
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
	return errors.Wrapf(err, "add stats for user %s", userID)
}

// UserStats returns one user's counters or ErrNotFound.
func (s *Store) UserStats(ctx context.Context, userID string) (*UserStat, error) {
	var st UserStat
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "get stats for user %s", userID)
	}
	return &st, nil
}

// AggregateStats sums the counters of every user.
func (s *Store) AggregateStats(ctx context.Context) (*StatTotals, error) {
	var t StatTotals
	err := s.db.WithContext(ctx).Model(&UserStat{}).Select(
		"COUNT(*) AS users, " +
			"COALESCE(SUM(total_messages), 0) AS total_messages, " +
			"COALESCE(SUM(total_words), 0) AS total_words, " +
			"COALESCE(SUM(messages_removed), 0) AS messages_removed, " +
			"COALESCE(SUM(messages_edited), 0) AS messages_edited, " +
			"COALESCE(SUM(total_swears), 0) AS total_swears, " +
			"COALESCE(SUM(reactions_given), 0) AS reactions_given, " +
			"COALESCE(SUM(reactions_received), 0) AS reactions_received, " +
			"COALESCE(SUM(voice_seconds), 0) AS voice_seconds, " +
			"COALESCE(SUM(streaming_seconds), 0) AS streaming_seconds",
	).Scan(&t).Error
	if err != nil {
		return nil, errors.Wrap(err, "aggregate stats")
	}
	return &t, nil
}

// RemovalStat counts messages removed by (or on behalf of) a user.
type RemovalStat struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"size:32;not null;uniqueIndex"`
	TotalRemoved int64  `gorm:"not null"`
	LastUpdated  time.Time
}

func (RemovalStat) TableName() string { return "message_removal_stats" }

// AddRemovals adds n to userID's removal counter.
func (s *Store) AddRemovals(ctx context.Context, userID string, n int64, now time.Time) error {
	now = now.UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_removed": gorm.Expr("total_removed + ?", n),
			"last_updated":  now,
		}),
	}).Create(&RemovalStat{UserID: userID, TotalRemoved: n, LastUpdated: now}).Error
	return errors.Wrapf(err, "add removals for user %s", userID)
}

// TotalRemovals sums removals over all users.
func (s *Store) TotalRemovals(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&RemovalStat{}).
		Select("COALESCE(SUM(total_removed), 0)").Scan(&total).Error
	return total, errors.Wrap(err, "sum removals")
}

// UserRemovals returns userID's removal counter (0 when absent).
func (s *Store) UserRemovals(ctx context.Context, userID string) (int64, error) {
	var st RemovalStat
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get removals for user %s", userID)
	}
	return st.TotalRemoved, nil
}

// AllUserStats returns every row, most active first.
func (s *Store) AllUserStats(ctx context.Context) ([]UserStat, error) {
	var sts []UserStat
	err := s.db.WithContext(ctx).Order("total_messages DESC, user_id ASC").Find(&sts).Error
	return sts, errors.Wrap(err, "list stats")
}
