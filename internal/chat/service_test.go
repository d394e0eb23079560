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

package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/chat"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/USA-RedDragon/configulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testService(t *testing.T) (*chat.Service, *gorm.DB) {
	t.Helper()
	defConfig, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	defConfig.Database.Database = ""
	defConfig.Database.ExtraParameters = []string{}

	database, err := db.MakeDB(&defConfig)
	require.NoError(t, err)

	kvStore, err := kv.MakeKV(context.Background(), &defConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvStore.Close() })

	p := pipeline.New(kvStore, database)
	h := hub.New("chat", time.Second, hub.NewDeferredLifecycle())
	return chat.NewService(database, p, h), database
}

func TestJoinChannelCreatesMembership(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)

	require.NoError(t, svc.JoinChannel(1, channel.ID))

	var member models.ChatChannelMember
	require.NoError(t, database.Where("channel_id = ? AND user_id = ?", channel.ID, 1).First(&member).Error)
}

func TestJoinChannelIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)

	require.NoError(t, svc.JoinChannel(1, channel.ID))
	require.NoError(t, svc.JoinChannel(1, channel.ID))

	var count int64
	database.Model(&models.ChatChannelMember{}).Where("channel_id = ? AND user_id = ?", channel.ID, 1).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestJoinChannelUnknownChannelFails(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)
	assert.Error(t, svc.JoinChannel(1, 999))
}

func TestLeaveChannelRemovesMembership(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)
	require.NoError(t, svc.JoinChannel(1, channel.ID))

	require.NoError(t, svc.LeaveChannel(1, channel.ID))

	var count int64
	database.Model(&models.ChatChannelMember{}).Where("channel_id = ? AND user_id = ?", channel.ID, 1).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSendMessageRejectsRestrictedSender(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	sender := models.User{Username: "naughty", Restricted: true}
	require.NoError(t, database.Create(&sender).Error)
	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)

	_, apiErr := svc.SendMessage(context.Background(), sender.ID, channel.ID, "hello")
	require.Error(t, apiErr)
}

func TestSendMessageUnknownChannelFails(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	sender := models.User{Username: "player"}
	require.NoError(t, database.Create(&sender).Error)

	_, apiErr := svc.SendMessage(context.Background(), sender.ID, 999, "hello")
	require.Error(t, apiErr)
}

func TestSendMessagePublishesThroughPipeline(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	sender := models.User{Username: "player"}
	require.NoError(t, database.Create(&sender).Error)
	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)

	msg, apiErr := svc.SendMessage(context.Background(), sender.ID, channel.ID, "hello world")
	require.Nil(t, apiErr)
	assert.Equal(t, "hello world", msg.Content)
}

func TestSendMessageBlockedPMFails(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	sender := models.User{Username: "sender"}
	require.NoError(t, database.Create(&sender).Error)
	target := models.User{Username: "target"}
	require.NoError(t, database.Create(&target).Error)
	require.NoError(t, database.Create(&models.UserRelation{UserID: target.ID, TargetID: sender.ID, Kind: "block"}).Error)

	channel, err := models.FindOrCreatePMChannel(database, sender.ID, target.ID)
	require.NoError(t, err)

	_, apiErr := svc.SendMessage(context.Background(), sender.ID, channel.ID, "hey")
	require.Error(t, apiErr)
}

func TestMarkAsReadUpdatesPosition(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)
	require.NoError(t, svc.JoinChannel(1, channel.ID))

	require.NoError(t, svc.MarkAsRead(1, channel.ID, 42))

	var member models.ChatChannelMember
	require.NoError(t, database.Where("channel_id = ? AND user_id = ?", channel.ID, 1).First(&member).Error)
	assert.Equal(t, uint64(42), member.LastReadMsgID)
}

func TestNotifyChannelMessageExcludesSender(t *testing.T) {
	t.Parallel()
	svc, database := testService(t)

	channel := models.ChatChannel{Name: "lobby", Type: "public"}
	require.NoError(t, database.Create(&channel).Error)
	require.NoError(t, svc.JoinChannel(1, channel.ID))
	require.NoError(t, svc.JoinChannel(2, channel.ID))

	require.NoError(t, svc.NotifyChannelMessage(channel.ID, 1, "{}"))

	var recipients []models.UserNotification
	require.NoError(t, database.Find(&recipients).Error)
	require.Len(t, recipients, 1)
	assert.Equal(t, uint(2), recipients[0].UserID)
}
