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

package api

import (
	"net/http"

	"github.com/USA-RedDragon/DMRHub/internal/chat"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/USA-RedDragon/DMRHub/internal/http/api/handlers"
	"github.com/USA-RedDragon/DMRHub/internal/http/api/middleware"
	"github.com/gin-gonic/gin"
)

// ApplyRoutes mounts the token endpoint, session verification, the chat
// send/list/read surface, and each registered hub's
// negotiate/connect routes onto the HTTP mux.
func ApplyRoutes(router *gin.Engine, cfg *config.Config, ratelimit gin.HandlerFunc, hubs map[string]*hub.Hub, chatSvc *chat.Service, chatPipeline *pipeline.Pipeline) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/network/name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": cfg.NetworkName})
	})

	oauth := router.Group("/oauth")
	oauth.Use(ratelimit)
	oauth.POST("/token", handlers.POSTToken)

	users := router.Group("/users")
	users.Use(ratelimit)
	users.POST("", handlers.POSTRegister)

	session := router.Group("/session")
	session.Use(ratelimit, middleware.RequireBearerToken())
	session.POST("/verify", handlers.POSTVerify)

	channels := router.Group("/channels")
	channels.Use(ratelimit, middleware.RequireBearerToken(), middleware.RequireVerifiedSession(), middleware.ChatProvider(chatSvc, chatPipeline))
	channels.POST("/:channelID/messages", handlers.POSTChannelMessage)
	channels.GET("/:channelID/messages", handlers.GETChannelMessages)
	channels.PUT("/:channelID/read", handlers.PUTChannelRead)

	for name, h := range hubs {
		group := router.Group("/" + name)
		group.Use(ratelimit, middleware.RequireBearerToken(), middleware.RequireVerifiedSession())
		group.POST("/negotiate", hub.NegotiateHandler(h))
		group.GET("/connect", hub.ConnectHandler(h))
	}
}
