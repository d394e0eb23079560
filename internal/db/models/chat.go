// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatChannel is a durable channel: public, PM, or multiplayer-room bound
// (spec §4.6). Multiplayer-room channels are never persisted to
// ChatMessage — see pipeline package.
type ChatChannel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Type        string // "public" | "pm" | "multiplayer"
	Description string
	UserAID     *uint // for "pm" channels, the two participants
	UserBID     *uint
	CreatedAt   time.Time
}

func (ChatChannel) TableName() string {
	return "chat_channels"
}

// ChatChannelMember tracks a user's join/read state for a channel.
type ChatChannelMember struct {
	ID            uint `gorm:"primaryKey"`
	ChannelID     uint `gorm:"index:idx_channel_member"`
	UserID        uint `gorm:"index:idx_channel_member"`
	JoinedAt      time.Time
	LastReadMsgID uint64
}

func (ChatChannelMember) TableName() string {
	return "chat_channel_members"
}

// ChatMessage is a durably stored message, written by the batch persister
// out of the Redis message pipeline (spec §4.7). MessageID is the pipeline's
// globally monotonic id, not the primary key, so ordering survives batching.
type ChatMessage struct {
	ID        uint `gorm:"primaryKey"`
	MessageID uint64 `gorm:"uniqueIndex"`
	ChannelID uint   `gorm:"index"`
	SenderID  uint   `gorm:"index"`
	Content   string
	IsAction  bool
	Timestamp time.Time
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func FindOrCreatePMChannel(db *gorm.DB, userA, userB uint) (ChatChannel, error) {
	if userA > userB {
		userA, userB = userB, userA
	}
	var ch ChatChannel
	err := db.Where("type = ? AND user_a_id = ? AND user_b_id = ?", "pm", userA, userB).First(&ch).Error
	if err == nil {
		return ch, nil
	}
	ch = ChatChannel{Type: "pm", UserAID: &userA, UserBID: &userB, CreatedAt: time.Now()}
	err = db.Create(&ch).Error
	return ch, err
}

func PersistChatMessage(db *gorm.DB, msg *ChatMessage) error {
	return db.Create(msg).Error
}

// MessagesSince returns durably stored messages for a channel with
// MessageID greater than since, used as the fallback read-path when a
// requested range has fallen out of the Redis ring buffer (spec §4.7).
func MessagesSince(db *gorm.DB, channelID uint, since uint64, limit int) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := db.Where("channel_id = ? AND message_id > ?", channelID, since).
		Order("message_id asc").Limit(limit).Find(&msgs).Error
	return msgs, err
}

// MessagesUntil returns durably stored messages for a channel with
// MessageID less than until, descending, used by the message pipeline's
// durable fallback for the "before" read direction.
func MessagesUntil(db *gorm.DB, channelID uint, until uint64, limit int) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := db.Where("channel_id = ? AND message_id < ?", channelID, until).
		Order("message_id desc").Limit(limit).Find(&msgs).Error
	return msgs, err
}

// LatestMessages returns the most recent durably stored messages for a
// channel, descending, used as the durable fallback when Redis holds
// nothing for the channel yet.
func LatestMessages(db *gorm.DB, channelID uint, limit int) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := db.Where("channel_id = ?", channelID).
		Order("message_id desc").Limit(limit).Find(&msgs).Error
	return msgs, err
}

// MaxMessageID returns the highest MessageID ever persisted, used to seed
// the pipeline's global id counter on startup so it never reuses an id
// after a restart with an empty Redis (spec §4.7 "Startup").
func MaxMessageID(db *gorm.DB) (uint64, error) {
	var max uint64
	err := db.Model(&ChatMessage{}).Select("COALESCE(MAX(message_id), 0)").Scan(&max).Error
	return max, err
}

func UpdateLastRead(db *gorm.DB, channelID, userID uint, messageID uint64) error {
	return db.Model(&ChatChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("last_read_msg_id", messageID).Error
}

// Notification is a durable event fanned out to one or more recipients via
// UserNotification rows (spec §4.6).
type Notification struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	Category  string
	SourceID  uint
	Details   string // JSON payload, interpretation left to the client
	CreatedAt time.Time
}

func (Notification) TableName() string {
	return "notifications"
}

// UserNotification is the per-recipient delivery/read-state row
// (supplemented feature grounded on lazer-server's notification table).
type UserNotification struct {
	ID             uint `gorm:"primaryKey"`
	NotificationID uint `gorm:"index"`
	UserID         uint `gorm:"index:idx_user_notification"`
	ReadAt         *time.Time
	CreatedAt      time.Time
}

func (UserNotification) TableName() string {
	return "user_notifications"
}

func CreateNotification(db *gorm.DB, n *Notification, recipients []uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		rows := make([]UserNotification, 0, len(recipients))
		for _, uid := range recipients {
			rows = append(rows, UserNotification{NotificationID: n.ID, UserID: uid, CreatedAt: time.Now()})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func MarkNotificationRead(db *gorm.DB, userNotificationID uint) error {
	now := time.Now()
	return db.Model(&UserNotification{}).Where("id = ?", userNotificationID).Update("read_at", &now).Error
}

func UnreadNotifications(db *gorm.DB, userID uint) ([]UserNotification, error) {
	var rows []UserNotification
	err := db.Where("user_id = ? AND read_at IS NULL", userID).Find(&rows).Error
	return rows, err
}
