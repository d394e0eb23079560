// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"gorm.io/gorm"
)

// Room is a durable record of a multiplayer match, inserted when the room
// is created and stamped with ClosedAt when it closes, so lobby
// history/results can be queried later (spec §4.3).
type Room struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	HostID     uint `gorm:"index"`
	Type       string // "head-to-head" | "team-versus" | "playlists"
	QueueMode  string // "host-only" | "all-players" | "round-robin"
	HasPassword bool
	AutoSkip   bool
	AutoStartDuration time.Duration
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

func (Room) TableName() string {
	return "rooms"
}

// PlaylistItem is a durable record of a single played/queued beatmap in a
// room's playlist (spec §4.3).
type PlaylistItem struct {
	ID          uint `gorm:"primaryKey"`
	RoomID      uint `gorm:"index"`
	OwnerID     uint
	BeatmapID   uint
	RulesetID   Ruleset
	Mods        StringSlice `gorm:"type:text"`
	Expired     bool
	PlayedAt    *time.Time
	PlaylistOrder int
	CreatedAt   time.Time
}

func (PlaylistItem) TableName() string {
	return "playlist_items"
}

// PlaylistItemScore records a single user's score against a playlist item,
// for room-history queries after the room closes (supplemented feature).
type PlaylistItemScore struct {
	ID             uint `gorm:"primaryKey"`
	PlaylistItemID uint `gorm:"index"`
	UserID         uint `gorm:"index"`
	TotalScore     uint64
	Accuracy       float64
	MaxCombo       uint
	Passed         bool
	CreatedAt      time.Time
}

func (PlaylistItemScore) TableName() string {
	return "playlist_item_scores"
}

func CreateRoom(db *gorm.DB, room *Room) error {
	return db.Create(room).Error
}

func CloseRoom(db *gorm.DB, id uint) error {
	now := time.Now()
	return db.Model(&Room{}).Where("id = ?", id).Update("closed_at", &now).Error
}

func AppendPlaylistItem(db *gorm.DB, item *PlaylistItem) error {
	return db.Create(item).Error
}

func RecordPlaylistItemScore(db *gorm.DB, score *PlaylistItemScore) error {
	return db.Create(score).Error
}
