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

// Package chat implements the channel/notification server (spec §4.6):
// channel membership, message sends routed through the pipeline package,
// read tracking, bot command dispatch, and notification fan-out, all
// delivered to connected clients over a hub.Hub WebSocket.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/apierrors"
	"github.com/USA-RedDragon/DMRHub/internal/chat/bot"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"gorm.io/gorm"
)

func userGroup(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func channelGroup(channelID uint) string {
	return fmt.Sprintf("channel:%d", channelID)
}

// Service is the chat hub's Lifecycle and the backing implementation for
// the HTTP send/read endpoints.
type Service struct {
	db       *gorm.DB
	pipeline *pipeline.Pipeline
	h        *hub.Hub
	bot      *bot.Dispatcher
}

func NewService(db *gorm.DB, p *pipeline.Pipeline, h *hub.Hub) *Service {
	s := &Service{db: db, pipeline: p, h: h, bot: bot.NewDispatcher(db)}
	h.Handle("MarkAsRead", s.handleMarkAsRead)
	h.Handle("JoinChannel", s.handleJoinChannel)
	h.Handle("LeaveChannel", s.handleLeaveChannel)
	return s
}

// OnConnect joins the connecting client to every channel it is already a
// member of, plus its personal notification group, so pushes and
// broadcasts reach it without an explicit subscribe call.
func (s *Service) OnConnect(_ context.Context, client *hub.Client) {
	s.h.JoinGroup(userGroup(client.UserID), client)

	var memberships []models.ChatChannelMember
	if err := s.db.Where("user_id = ?", client.UserID).Find(&memberships).Error; err != nil {
		return
	}
	for _, m := range memberships {
		s.h.JoinGroup(channelGroup(m.ChannelID), client)
	}
}

// OnDisconnect updates last_visit for the metadata hub's presence model;
// group membership cleanup is handled by hub.remove itself.
func (s *Service) OnDisconnect(client *hub.Client, _ string) {
	_ = s.db.Model(&models.User{}).Where("id = ?", client.UserID).
		Update("last_visit", time.Now()).Error
}

// JoinChannel records membership and, if the caller is connected,
// subscribes its live client to the channel's broadcast group.
func (s *Service) JoinChannel(userID, channelID uint) error {
	var channel models.ChatChannel
	if err := s.db.First(&channel, channelID).Error; err != nil {
		return fmt.Errorf("channel %d not found", channelID)
	}

	var existing models.ChatChannelMember
	err := s.db.Where("channel_id = ? AND user_id = ?", channelID, userID).First(&existing).Error
	if err != nil {
		member := models.ChatChannelMember{ChannelID: channelID, UserID: userID, JoinedAt: time.Now()}
		if err := s.db.Create(&member).Error; err != nil {
			return fmt.Errorf("failed to join channel: %w", err)
		}
	}

	if client, ok := s.h.ClientByUserID(userID); ok {
		s.h.JoinGroup(channelGroup(channelID), client)
	}
	return nil
}

func (s *Service) LeaveChannel(userID, channelID uint) error {
	if err := s.db.Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&models.ChatChannelMember{}).Error; err != nil {
		return fmt.Errorf("failed to leave channel: %w", err)
	}
	if client, ok := s.h.ClientByUserID(userID); ok {
		s.h.LeaveGroup(channelGroup(channelID), client)
	}
	return nil
}

// SendMessage implements spec §4.6 "Send": validates the sender, writes
// through the pipeline, broadcasts to live members, and routes bot
// commands starting with "!" to a PM channel with the bot.
func (s *Service) SendMessage(ctx context.Context, senderID, channelID uint, content string) (*pipeline.Message, *apierrors.Error) {
	sender, err := models.FindUserByID(s.db, senderID)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNotFound, "sender not found")
	}
	if sender.Restricted {
		return nil, apierrors.New(apierrors.KindForbidden, "restricted users cannot send chat messages")
	}

	var channel models.ChatChannel
	if err := s.db.First(&channel, channelID).Error; err != nil {
		return nil, apierrors.New(apierrors.KindNotFound, "channel not found")
	}
	if channel.Type == "pm" {
		if err := s.checkPMEligible(channel, senderID); err != nil {
			return nil, apierrors.New(apierrors.KindForbidden, err.Error())
		}
	}

	ephemeral := channel.Type == "multiplayer" || channel.Type == "spectator"
	msg, err := s.pipeline.Publish(ctx, channelID, senderID, content, false, ephemeral)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindUpstream, "failed to publish message", err)
	}

	s.h.Broadcast(channelGroup(channelID), "chat.message.new", msg)

	if strings.HasPrefix(content, "!") {
		s.dispatchBotCommand(ctx, sender, channel, content)
	}

	return msg, nil
}

func (s *Service) checkPMEligible(channel models.ChatChannel, senderID uint) error {
	if channel.UserAID == nil || channel.UserBID == nil {
		return nil
	}
	target := *channel.UserAID
	if target == senderID {
		target = *channel.UserBID
	}
	if models.IsBlocked(s.db, senderID, target) {
		return fmt.Errorf("cannot message a user who has blocked you")
	}
	return nil
}

// dispatchBotCommand runs a "!"-prefixed command and redirects the reply
// to a PM channel between the sender and the bot (spec §4.6).
func (s *Service) dispatchBotCommand(ctx context.Context, sender models.User, origin models.ChatChannel, content string) {
	reply, ok := s.bot.Dispatch(sender, strings.TrimPrefix(content, "!"))
	if !ok {
		return
	}

	target := origin
	if origin.Type != "pm" {
		botUser, err := models.FindUserByUsername(s.db, bot.Username)
		if err != nil {
			return
		}
		ch, err := models.FindOrCreatePMChannel(s.db, sender.ID, botUser.ID)
		if err != nil {
			return
		}
		target = ch
		_ = s.JoinChannel(sender.ID, target.ID)
	}

	msg, err := s.pipeline.Publish(ctx, target.ID, bot.UserID(s.db), reply, false, false)
	if err != nil {
		return
	}
	s.h.Broadcast(channelGroup(target.ID), "chat.message.new", msg)
}

// MarkAsRead persists the caller's read position for a channel (spec
// §4.6 "Read tracking").
func (s *Service) MarkAsRead(userID, channelID uint, messageID uint64) error {
	return models.UpdateLastRead(s.db, channelID, userID, messageID)
}

func (s *Service) handleMarkAsRead(_ context.Context, client *hub.Client, args []any) (any, error) {
	channelID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	messageID, err := argUint64(args, 1)
	if err != nil {
		return nil, err
	}
	return nil, s.MarkAsRead(client.UserID, channelID, messageID)
}

func (s *Service) handleJoinChannel(_ context.Context, client *hub.Client, args []any) (any, error) {
	channelID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.JoinChannel(client.UserID, channelID)
}

func (s *Service) handleLeaveChannel(_ context.Context, client *hub.Client, args []any) (any, error) {
	channelID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.LeaveChannel(client.UserID, channelID)
}
