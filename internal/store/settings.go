package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

const botSettingsID = 1

// BotSettings is the singleton row holding the last presence set by an admin.
type BotSettings struct {
	ID           uint   `gorm:"primaryKey"`
	ActivityType string `gorm:"size:32"`
	ActivityText string `gorm:"size:255"`
	Status       string `gorm:"size:32"`
	UpdatedAt    time.Time
}

func (BotSettings) TableName() string { return "bot_settings" }

// BotSettings returns the saved presence or ErrNotFound.
func (s *Store) BotSettings(ctx context.Context) (*BotSettings, error) {
	var bs BotSettings
	if err := s.db.WithContext(ctx).First(&bs, botSettingsID).Error; err != nil {
		return nil, errors.Wrap(notFound(err), "get bot settings")
	}
	return &bs, nil
}

// SaveBotSettings overwrites the singleton row.
func (s *Store) SaveBotSettings(ctx context.Context, bs *BotSettings) error {
	bs.ID = botSettingsID
	return errors.Wrap(s.db.WithContext(ctx).Save(bs).Error, "save bot settings")
}

// SwearWord is one entry of the swear list used by message statistics.
type SwearWord struct {
	ID   uint   `gorm:"primaryKey"`
	Word string `gorm:"size:100;not null;uniqueIndex"`
}

// AddSwearWord stores word; it reports false when the word was already listed.
func (s *Store) AddSwearWord(ctx context.Context, word string) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&SwearWord{Word: word})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "add swear word %q", word)
	}
	return res.RowsAffected > 0, nil
}

// SwearWords returns every stored word.
func (s *Store) SwearWords(ctx context.Context) ([]string, error) {
	var words []string
	err := s.db.WithContext(ctx).Model(&SwearWord{}).Order("word ASC").Pluck("word", &words).Error
	return words, errors.Wrap(err, "list swear words")
}
