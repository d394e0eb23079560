// SPDX-License-Identifier: AGPL-3.0-or-later
// DMRHub - Run a DMR network server in a single binary
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/USA-RedDragon/DMRHub>

package chat

import (
	"fmt"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
)

// NotificationKind names the notification categories spec §4.6 resolves
// recipients for.
type NotificationKind string

const (
	NotificationChannelMessage       NotificationKind = "channel_message"
	NotificationChannelTeam          NotificationKind = "channel_team"
	NotificationUserAchievementUnlock NotificationKind = "user_achievement_unlock"
	NotificationTeamApplication      NotificationKind = "team_application"
)

// Notify inserts a Notification row, fans out UserNotification rows to
// the resolved recipients, and pushes a "new" event to each recipient's
// personal group (spec §4.6 "Notifications").
func (s *Service) Notify(kind NotificationKind, sourceID uint, details string, recipients []uint) error {
	n := &models.Notification{
		Name:     string(kind),
		Category: string(kind),
		SourceID: sourceID,
		Details:  details,
	}
	if err := models.CreateNotification(s.db, n, recipients); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	for _, uid := range recipients {
		s.h.Broadcast(userGroup(uid), "notification.new", n)
	}
	return nil
}

// NotifyChannelMessage resolves recipients for a channel_message
// notification to every member of the channel except the sender.
func (s *Service) NotifyChannelMessage(channelID, senderID uint, details string) error {
	var members []models.ChatChannelMember
	if err := s.db.Where("channel_id = ? AND user_id != ?", channelID, senderID).Find(&members).Error; err != nil {
		return fmt.Errorf("failed to resolve channel recipients: %w", err)
	}
	recipients := make([]uint, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, m.UserID)
	}
	return s.Notify(NotificationChannelMessage, senderID, details, recipients)
}
