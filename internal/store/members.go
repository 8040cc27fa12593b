package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Member is the membership history of one user: how often they joined, were
// kicked or banned, and the roles they held when they last left.
type Member struct {
	UserID        string                      `gorm:"primaryKey;size:32"`
	Roles         datatypes.JSONSlice[string] `gorm:"type:text"`
	Connections   int                         `gorm:"not null"`
	FirstJoinDate time.Time
	Kicks         int    `gorm:"not null"`
	Bans          int    `gorm:"not null"`
	InviterID     string `gorm:"size:32;not null"`
}

func (Member) TableName() string { return "user_data" }

// UnknownInviter marks a member whose inviter was not tracked.
const UnknownInviter = "0"

// MemberField names a counter IncrementMemberField may touch.
type MemberField string

const (
	FieldConnections MemberField = "connections"
	FieldKicks       MemberField = "kicks"
	FieldBans        MemberField = "bans"
)

// MemberByID returns the record or ErrNotFound.
func (s *Store) MemberByID(ctx context.Context, userID string) (*Member, error) {
	var m Member
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, errors.Wrapf(notFound(err), "get member %s", userID)
	}
	return &m, nil
}

// SaveMember inserts or replaces the record.
func (s *Store) SaveMember(ctx context.Context, m *Member) error {
	if m.InviterID == "" {
		m.InviterID = UnknownInviter
	}
	if m.Roles == nil {
		m.Roles = datatypes.JSONSlice[string]{}
	}
	m.FirstJoinDate = m.FirstJoinDate.UTC()
	return errors.Wrapf(s.db.WithContext(ctx).Save(m).Error, "save member %s", m.UserID)
}

// IncrementMemberField adds one to a counter of an existing record.
func (s *Store) IncrementMemberField(ctx context.Context, userID string, field MemberField) error {
	switch field {
	case FieldConnections, FieldKicks, FieldBans:
	default:
		return errors.Errorf("unknown member field %q", field)
	}
	col := string(field)
	res := s.db.WithContext(ctx).Model(&Member{}).Where("user_id = ?", userID).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "increment %s for member %s", col, userID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "increment %s for member %s", col, userID)
	}
	return nil
}
