package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GameSession is one stretch of time a user spent playing a game.
// SessionEnd is nil while the session is open.
type GameSession struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"size:32;not null;index"`
	Nickname     string    `gorm:"size:100"`
	ActivityName string    `gorm:"size:255;not null;index"`
	SessionStart time.Time `gorm:"not null"`
	SessionEnd   *time.Time
}

func (GameSession) TableName() string { return "activities" }

// GameAlias maps a raw presence name to the canonical game name.
type GameAlias struct {
	ID           uint   `gorm:"primaryKey"`
	StandardName string `gorm:"size:255;not null"`
	AliasName    string `gorm:"size:255;not null;uniqueIndex"`
}

// GameTotal is the closed-session playtime of one game.
type GameTotal struct {
	Name     string
	Sessions int
	Seconds  int64
}

var trademarkStripper = strings.NewReplacer("™", "", "®", "")

// NormalizeGameName strips trademark signs and surrounding whitespace,
// keeping the original capitalization.
func NormalizeGameName(name string) string {
	return strings.TrimSpace(trademarkStripper.Replace(name))
}

// StartGameSession opens a session for userID.
func (s *Store) StartGameSession(ctx context.Context, userID, nickname, game string, at time.Time) error {
	gs := &GameSession{UserID: userID, Nickname: nickname, ActivityName: game, SessionStart: at.UTC()}
	return errors.Wrapf(s.db.WithContext(ctx).Create(gs).Error, "start %s session for %s", game, userID)
}

// EndGameSession closes the newest open session of userID for game.
// It is a no-op when no such session exists.
func (s *Store) EndGameSession(ctx context.Context, userID, game string, at time.Time) error {
	var gs GameSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND activity_name = ? AND session_end IS NULL", userID, game).
		Order("session_start DESC").
		First(&gs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "find open %s session for %s", game, userID)
	}
	end := at.UTC()
	err = s.db.WithContext(ctx).Model(&gs).Update("session_end", end).Error
	return errors.Wrapf(err, "end %s session for %s", game, userID)
}

// GameTotals sums closed sessions per game for userID, longest first.
func (s *Store) GameTotals(ctx context.Context, userID string) ([]GameTotal, error) {
	var sessions []GameSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_end IS NOT NULL", userID).
		Find(&sessions).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list sessions for %s", userID)
	}
	byName := map[string]*GameTotal{}
	for _, gs := range sessions {
		t, ok := byName[gs.ActivityName]
		if !ok {
			t = &GameTotal{Name: gs.ActivityName}
			byName[gs.ActivityName] = t
		}
		t.Sessions++
		if d := gs.SessionEnd.Sub(gs.SessionStart); d > 0 {
			t.Seconds += int64(d / time.Second)
		}
	}
	out := make([]GameTotal, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// AddGameAlias maps alias to standard; both are normalized first.
func (s *Store) AddGameAlias(ctx context.Context, standard, alias string) error {
	a := &GameAlias{StandardName: NormalizeGameName(standard), AliasName: NormalizeGameName(alias)}
	return errors.Wrapf(s.db.WithContext(ctx).Create(a).Error, "add alias %q", alias)
}

// StandardGameName resolves a raw presence name through the alias table.
// Unknown names come back normalized.
func (s *Store) StandardGameName(ctx context.Context, raw string) (string, error) {
	name := NormalizeGameName(raw)
	var a GameAlias
	err := s.db.WithContext(ctx).Where("alias_name = ?", name).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return name, nil
	}
	if err != nil {
		return name, errors.Wrapf(err, "resolve alias %q", name)
	}
	return a.StandardName, nil
}
