package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Series is a TV show the community watches together.
type Series struct {
	ID       uint      `gorm:"primaryKey"`
	Title    string    `gorm:"size:255;not null"`
	AddedBy  string    `gorm:"size:32"`
	AddedAt  time.Time `gorm:"autoCreateTime"`
	Ended    bool      `gorm:"not null"`
	Episodes []Episode `gorm:"constraint:OnDelete:CASCADE;"`
}

func (Series) TableName() string { return "series" }

// Episode is unique per (series, season, episode).
type Episode struct {
	ID            uint `gorm:"primaryKey"`
	SeriesID      uint `gorm:"not null;uniqueIndex:idx_episode_number"`
	SeasonNumber  int  `gorm:"not null;uniqueIndex:idx_episode_number"`
	EpisodeNumber int  `gorm:"not null;uniqueIndex:idx_episode_number"`
	Watched       bool `gorm:"not null"`
	WatchedAt     *time.Time
}

// SeasonProgress is the watched/total count of one season.
type SeasonProgress struct {
	Season  int
	Watched int
	Total   int
}

// AddSeries creates a series and its episodes. episodesPerSeason[i] is the
// episode count of season i+1.
func (s *Store) AddSeries(ctx context.Context, title, addedBy string, episodesPerSeason []int) (*Series, error) {
	series := &Series{Title: title, AddedBy: addedBy}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(series).Error; err != nil {
			return err
		}
		var eps []Episode
		for i, n := range episodesPerSeason {
			for e := 1; e <= n; e++ {
				eps = append(eps, Episode{SeriesID: series.ID, SeasonNumber: i + 1, EpisodeNumber: e})
			}
		}
		if len(eps) == 0 {
			return nil
		}
		return tx.CreateInBatches(eps, 100).Error
	})
	if err != nil {
		return nil, errors.Wrapf(err, "add series %q", title)
	}
	return series, nil
}

// AddSeason appends a season with n episodes and returns its number.
func (s *Store) AddSeason(ctx context.Context, seriesID uint, n int) (int, error) {
	var season int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var top int
		if err := tx.Model(&Episode{}).Where("series_id = ?", seriesID).
			Select("COALESCE(MAX(season_number), 0)").Scan(&top).Error; err != nil {
			return err
		}
		season = top + 1
		return insertEpisodes(tx, seriesID, season, 1, n)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "add season to series %d", seriesID)
	}
	return season, nil
}

// AddEpisode appends one episode to season and returns its number.
func (s *Store) AddEpisode(ctx context.Context, seriesID uint, season int) (int, error) {
	var episode int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		top, err := lastEpisode(tx, seriesID, season)
		if err != nil {
			return err
		}
		episode = top + 1
		return insertEpisodes(tx, seriesID, season, episode, episode)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "add episode to series %d season %d", seriesID, season)
	}
	return episode, nil
}

// EditSeasonEpisodes grows or shrinks a season to n episodes.
func (s *Store) EditSeasonEpisodes(ctx context.Context, seriesID uint, season, n int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		top, err := lastEpisode(tx, seriesID, season)
		if err != nil {
			return err
		}
		switch {
		case n > top:
			return insertEpisodes(tx, seriesID, season, top+1, n)
		case n < top:
			return tx.Where("series_id = ? AND season_number = ? AND episode_number > ?", seriesID, season, n).
				Delete(&Episode{}).Error
		}
		return nil
	})
	return errors.Wrapf(err, "edit season %d of series %d", season, seriesID)
}

func lastEpisode(tx *gorm.DB, seriesID uint, season int) (int, error) {
	var top int
	err := tx.Model(&Episode{}).Where("series_id = ? AND season_number = ?", seriesID, season).
		Select("COALESCE(MAX(episode_number), 0)").Scan(&top).Error
	return top, err
}

func insertEpisodes(tx *gorm.DB, seriesID uint, season, from, to int) error {
	if to < from {
		return nil
	}
	eps := make([]Episode, 0, to-from+1)
	for e := from; e <= to; e++ {
		eps = append(eps, Episode{SeriesID: seriesID, SeasonNumber: season, EpisodeNumber: e})
	}
	return tx.CreateInBatches(eps, 100).Error
}

// MarkEpisodeWatched flags one episode as watched at now.
func (s *Store) MarkEpisodeWatched(ctx context.Context, seriesID uint, season, episode int, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&Episode{}).
		Where("series_id = ? AND season_number = ? AND episode_number = ?", seriesID, season, episode).
		Updates(map[string]interface{}{"watched": true, "watched_at": now.UTC()})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "mark S%dE%d of series %d watched", season, episode, seriesID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "mark S%dE%d of series %d watched", season, episode, seriesID)
	}
	return nil
}

// ActiveSeries lists series that have not ended, by title.
func (s *Store) ActiveSeries(ctx context.Context) ([]Series, error) {
	var ss []Series
	if err := s.db.WithContext(ctx).Where("ended = ?", false).Order("title ASC").Find(&ss).Error; err != nil {
		return nil, errors.Wrap(err, "list series")
	}
	return ss, nil
}

// SeriesByID returns the series or ErrNotFound.
func (s *Store) SeriesByID(ctx context.Context, id uint) (*Series, error) {
	var series Series
	if err := s.db.WithContext(ctx).First(&series, id).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "get series %d", id)
	}
	return &series, nil
}

// EndSeries hides the series from the active list.
func (s *Store) EndSeries(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Series{}).Where("id = ?", id).Update("ended", true)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "end series %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "end series %d", id)
	}
	return nil
}

// EpisodesBySeries returns all episodes in watch order.
func (s *Store) EpisodesBySeries(ctx context.Context, seriesID uint) ([]Episode, error) {
	var eps []Episode
	err := s.db.WithContext(ctx).Where("series_id = ?", seriesID).
		Order("season_number ASC, episode_number ASC").Find(&eps).Error
	return eps, errors.Wrapf(err, "list episodes of series %d", seriesID)
}

// EpisodesBySeason returns one season's episodes in order.
func (s *Store) EpisodesBySeason(ctx context.Context, seriesID uint, season int) ([]Episode, error) {
	var eps []Episode
	err := s.db.WithContext(ctx).Where("series_id = ? AND season_number = ?", seriesID, season).
		Order("episode_number ASC").Find(&eps).Error
	return eps, errors.Wrapf(err, "list episodes of series %d season %d", seriesID, season)
}

// NextUnwatchedEpisode returns the first unwatched episode in watch order, or ErrNotFound.
func (s *Store) NextUnwatchedEpisode(ctx context.Context, seriesID uint) (*Episode, error) {
	var ep Episode
	err := s.db.WithContext(ctx).Where("series_id = ? AND watched = ?", seriesID, false).
		Order("season_number ASC, episode_number ASC").First(&ep).Error
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "next episode of series %d", seriesID)
	}
	return &ep, nil
}

// Progress summarises episodes per season, ordered by season.
func Progress(eps []Episode) []SeasonProgress {
	var out []SeasonProgress
	idx := map[int]int{}
	for _, ep := range eps {
		i, ok := idx[ep.SeasonNumber]
		if !ok {
			i = len(out)
			idx[ep.SeasonNumber] = i
			out = append(out, SeasonProgress{Season: ep.SeasonNumber})
		}
		out[i].Total++
		if ep.Watched {
			out[i].Watched++
		}
	}
	return out
}
