// Package store persists bot state with gorm. Every table group has its own
// file; all functions take a context and return wrapped errors.
package store

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store wraps the gorm handle shared by all cogs.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db. Call Migrate before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need raw access (tests, status).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Open opens a gorm connection for driver ("sqlite" or "mysql").
func Open(driver, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	return db, nil
}

// Migrate creates or updates every table the bot uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&PendingDeletion{},
		&RemovalStat{},
		&Movie{},
		&Series{},
		&Episode{},
		&UserStat{},
		&Member{},
		&GameSession{},
		&GameAlias{},
		&BotSettings{},
		&SwearWord{},
	)
	return errors.Wrap(err, "migrate database")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
