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

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// RequireBearerToken validates the Authorization header against the
// AccessToken table, rejecting expired or unknown tokens, and publishes
// the resolved User and TokenID into the gin context for downstream
// handlers (verification, hub negotiate, RPC dispatch).
func RequireBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		access, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || access == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		db, ok := c.MustGet("DB").(*gorm.DB)
		if !ok {
			slog.Error("RequireBearerToken: unable to get DB from context")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "try again later"})
			return
		}
		db = db.WithContext(c.Request.Context())

		token, err := models.FindAccessTokenByAccess(db, access)
		if err != nil || time.Now().After(token.ExpiresAt) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		user, err := models.FindUserByID(db, token.UserID)
		if err != nil || user.Restricted {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(attribute.Int("user.id", int(user.ID)))
		}

		c.Set("User", user)
		c.Set("TokenID", token.ID)
		c.Set("AccessToken", token)
		c.Next()
	}
}

// RequireVerifiedSession additionally rejects requests whose LoginSession
// has not completed its second factor (spec §4.1 state machine). Mount
// after RequireBearerToken on routes other than the verification endpoint
// itself.
func RequireVerifiedSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		db, ok := c.MustGet("DB").(*gorm.DB)
		if !ok {
			slog.Error("RequireVerifiedSession: unable to get DB from context")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "try again later"})
			return
		}
		tokenID, ok := c.MustGet("TokenID").(uint)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		session, err := models.FindLoginSessionByToken(db, tokenID)
		if err != nil || !session.IsVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "verification required"})
			return
		}
		c.Next()
	}
}
