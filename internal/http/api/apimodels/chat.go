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

package apimodels

import "time"

// SendMessageRequest is the body of POST /channels/:channelID/messages.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatMessageResponse is one message as rendered to HTTP clients, spanning
// both the Redis-fresh and durably-persisted pipeline shapes.
type ChatMessageResponse struct {
	ID        uint64    `json:"id"`
	ChannelID uint      `json:"channel_id"`
	SenderID  uint      `json:"sender_id"`
	Content   string    `json:"content"`
	IsAction  bool      `json:"is_action"`
	Timestamp time.Time `json:"timestamp"`
}

// MarkReadRequest is the body of PUT /channels/:channelID/read.
type MarkReadRequest struct {
	MessageID uint64 `json:"message_id" binding:"required"`
}
