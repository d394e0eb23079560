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

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/USA-RedDragon/DMRHub/internal/chat"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/http/api/apimodels"
	"github.com/gin-gonic/gin"
)

func chatChannelID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("channelID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid channel id"})
		return 0, false
	}
	return uint(id), true
}

// POSTChannelMessage implements spec §4.6 "Send": POST
// /channels/:channelID/messages.
func POSTChannelMessage(c *gin.Context) {
	svc, ok := c.MustGet("Chat").(*chat.Service)
	if !ok {
		slog.Error("POSTChannelMessage: unable to get Chat service from context")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}
	user, ok := c.MustGet("User").(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	channelID, ok := chatChannelID(c)
	if !ok {
		return
	}

	var body apimodels.SendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body is invalid"})
		return
	}

	msg, apiErr := svc.SendMessage(c.Request.Context(), user.ID, channelID, body.Content)
	if apiErr != nil {
		apiErr.WriteDetail(c)
		return
	}

	c.JSON(http.StatusCreated, apimodels.ChatMessageResponse{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		IsAction:  msg.IsAction,
		Timestamp: msg.Timestamp,
	})
}

// GETChannelMessages implements spec §4.7's read path over HTTP: GET
// /channels/:channelID/messages?since=&until=&limit=.
func GETChannelMessages(c *gin.Context) {
	svc, ok := c.MustGet("ChatPipeline").(*pipeline.Pipeline)
	if !ok {
		slog.Error("GETChannelMessages: unable to get pipeline from context")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}
	channelID, ok := chatChannelID(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	var since, until uint64
	if raw := c.Query("since"); raw != "" {
		since, _ = strconv.ParseUint(raw, 10, 64)
	}
	if raw := c.Query("until"); raw != "" {
		until, _ = strconv.ParseUint(raw, 10, 64)
	}

	msgs, err := svc.GetMessages(c.Request.Context(), channelID, limit, since, until)
	if err != nil {
		slog.Error("GETChannelMessages: pipeline read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}

	resp := make([]apimodels.ChatMessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, apimodels.ChatMessageResponse{
			ID:        msg.ID,
			ChannelID: msg.ChannelID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			IsAction:  msg.IsAction,
			Timestamp: msg.Timestamp,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// PUTChannelRead implements spec §4.6 "Read tracking": PUT
// /channels/:channelID/read.
func PUTChannelRead(c *gin.Context) {
	svc, ok := c.MustGet("Chat").(*chat.Service)
	if !ok {
		slog.Error("PUTChannelRead: unable to get Chat service from context")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}
	user, ok := c.MustGet("User").(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	channelID, ok := chatChannelID(c)
	if !ok {
		return
	}

	var body apimodels.MarkReadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body is invalid"})
		return
	}

	if err := svc.MarkAsRead(user.ID, channelID, body.MessageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}
	c.Status(http.StatusNoContent)
}
