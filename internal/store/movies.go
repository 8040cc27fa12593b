package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Movie is an entry in the movie-night pool. A nil LastWatched means the
// movie has never been watched. Pending suggestions wait for an admin decision
// and are not eligible for the random pick.
type Movie struct {
	ID                uint   `gorm:"primaryKey"`
	Title             string `gorm:"size:255;not null;index"`
	LastWatched       *time.Time
	IsRemovedFromPool bool `gorm:"not null"`
	Pending           bool `gorm:"not null"`
	SuggestedBy       string `gorm:"size:32"`
}

// AddMovie inserts a suggested movie awaiting approval.
func (s *Store) AddMovie(ctx context.Context, title, suggestedBy string) (*Movie, error) {
	m := &Movie{Title: title, Pending: true, SuggestedBy: suggestedBy}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, errors.Wrapf(err, "add movie %q", title)
	}
	return m, nil
}

// MovieByID returns the movie or ErrNotFound.
func (s *Store) MovieByID(ctx context.Context, id uint) (*Movie, error) {
	var m Movie
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "get movie %d", id)
	}
	return &m, nil
}

// MovieByTitle returns the movie with exactly this title or ErrNotFound.
func (s *Store) MovieByTitle(ctx context.Context, title string) (*Movie, error) {
	var m Movie
	if err := s.db.WithContext(ctx).Where("title = ?", title).First(&m).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "get movie %q", title)
	}
	return &m, nil
}

// Movies returns every movie ordered by id.
func (s *Store) Movies(ctx context.Context) ([]Movie, error) {
	var ms []Movie
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list movies")
	}
	return ms, nil
}

// MarkMovieWatched stamps the movie as watched at now and puts it back in the pool.
func (s *Store) MarkMovieWatched(ctx context.Context, id uint, now time.Time) error {
	return s.updateMovie(ctx, id, map[string]interface{}{
		"last_watched":         now.UTC(),
		"is_removed_from_pool": false,
		"pending":              false,
	})
}

// ApproveMovie accepts a suggestion; it becomes eligible for the random pick.
func (s *Store) ApproveMovie(ctx context.Context, id uint) error {
	return s.updateMovie(ctx, id, map[string]interface{}{
		"last_watched": nil,
		"pending":      false,
	})
}

// RemoveMovieFromPool excludes the movie from the random pick without deleting it.
func (s *Store) RemoveMovieFromPool(ctx context.Context, id uint) error {
	return s.updateMovie(ctx, id, map[string]interface{}{"is_removed_from_pool": true})
}

// EditMovieTitle renames the movie.
func (s *Store) EditMovieTitle(ctx context.Context, id uint, title string) error {
	return s.updateMovie(ctx, id, map[string]interface{}{"title": title})
}

// DeleteMovie removes a rejected suggestion.
func (s *Store) DeleteMovie(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Movie{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete movie %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "delete movie %d", id)
	}
	return nil
}

func (s *Store) updateMovie(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&Movie{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update movie %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "update movie %d", id)
	}
	return nil
}

// EligibleMovies returns approved movies still in the pool that were never
// watched or were last watched before now-cooldown.
func (s *Store) EligibleMovies(ctx context.Context, cooldown time.Duration, now time.Time) ([]Movie, error) {
	cutoff := now.Add(-cooldown).UTC()
	var ms []Movie
	err := s.db.WithContext(ctx).
		Where("(last_watched IS NULL OR last_watched < ?) AND is_removed_from_pool = ? AND pending = ?", cutoff, false, false).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, errors.Wrap(err, "list eligible movies")
	}
	return ms, nil
}

// RandomMovie picks one eligible movie. pick(n) must return an index in [0, n).
// The choice is made in Go so that the query stays portable between drivers.
func (s *Store) RandomMovie(ctx context.Context, cooldown time.Duration, now time.Time, pick func(n int) int) (*Movie, error) {
	ms, err := s.EligibleMovies(ctx, cooldown, now)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, errors.Wrap(ErrNotFound, "pick random movie")
	}
	return &ms[pick(len(ms))], nil
}
