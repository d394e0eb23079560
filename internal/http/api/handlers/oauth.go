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

// Package handlers holds the gin handler functions for the HTTP surface
// (spec §6 External Interfaces): the OAuth token endpoint, session
// verification, and registration.
package handlers

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/USA-RedDragon/DMRHub/internal/auth"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/http/api/apimodels"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func POSTToken(c *gin.Context) {
	db, ok := c.MustGet("DB").(*gorm.DB)
	if !ok {
		slog.Error("POSTToken: unable to get DB from context")
		c.JSON(http.StatusInternalServerError, apimodels.OAuthErrorResponse{Error: "server_error", ErrorDescription: "try again later"})
		return
	}
	store, ok := c.MustGet("KV").(kv.KV)
	if !ok {
		slog.Error("POSTToken: unable to get KV from context")
		c.JSON(http.StatusInternalServerError, apimodels.OAuthErrorResponse{Error: "server_error", ErrorDescription: "try again later"})
		return
	}
	cfg, ok := c.MustGet("Config").(*config.Config)
	if !ok {
		slog.Error("POSTToken: unable to get Config from context")
		c.JSON(http.StatusInternalServerError, apimodels.OAuthErrorResponse{Error: "server_error", ErrorDescription: "try again later"})
		return
	}

	var body apimodels.TokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		slog.Warn("POSTToken: invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, apimodels.OAuthErrorResponse{Error: "invalid_request", ErrorDescription: "request body is invalid"})
		return
	}

	req := auth.TokenRequest{
		Grant:        auth.Grant(body.GrantType),
		Password:     body.Password,
		RefreshToken: body.RefreshToken,
		Code:         body.Code,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		RedirectURI:  body.RedirectURI,
		Scope:        body.Scope,
		UserAgent:    c.Request.UserAgent(),
		ClientType:   c.GetHeader("X-Client-Type"),
		WebUUID:      c.GetHeader("X-Web-UUID"),
		SupportsTOTP: c.GetHeader("X-Supports-TOTP") == "true",
	}
	if body.Username != "" {
		req.Identifier = body.Username
	}
	if ip := net.ParseIP(c.ClientIP()); ip != nil {
		req.IP = ip
	}

	result, apiErr := auth.Token(c.Request.Context(), db, store, cfg, req)
	if apiErr != nil {
		apiErr.WriteOAuthEnvelope(c)
		return
	}

	c.JSON(http.StatusOK, apimodels.TokenResponse{
		AccessToken:      result.AccessToken,
		TokenType:        "Bearer",
		ExpiresIn:        result.ExpiresIn,
		RefreshToken:     result.RefreshToken,
		Scope:            result.Scope,
		VerificationType: string(result.VerifyMethod),
	})
}

func POSTVerify(c *gin.Context) {
	db, ok := c.MustGet("DB").(*gorm.DB)
	if !ok {
		slog.Error("POSTVerify: unable to get DB from context")
		c.JSON(http.StatusInternalServerError, apimodels.VerifyFailureResponse{Error: "try again later"})
		return
	}
	store, ok := c.MustGet("KV").(kv.KV)
	if !ok {
		slog.Error("POSTVerify: unable to get KV from context")
		c.JSON(http.StatusInternalServerError, apimodels.VerifyFailureResponse{Error: "try again later"})
		return
	}
	cfg, ok := c.MustGet("Config").(*config.Config)
	if !ok {
		slog.Error("POSTVerify: unable to get Config from context")
		c.JSON(http.StatusInternalServerError, apimodels.VerifyFailureResponse{Error: "try again later"})
		return
	}

	user, ok := c.MustGet("User").(models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, apimodels.VerifyFailureResponse{Error: "authentication required"})
		return
	}
	tokenID, ok := c.MustGet("TokenID").(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, apimodels.VerifyFailureResponse{Error: "authentication required"})
		return
	}

	var body apimodels.VerifyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, apimodels.VerifyFailureResponse{Error: "request body is invalid"})
		return
	}

	session, err := models.FindLoginSessionByToken(db, tokenID)
	if err != nil {
		c.JSON(http.StatusNotFound, apimodels.VerifyFailureResponse{Error: "no login session for this token"})
		return
	}

	fingerprint := auth.DeviceFingerprint(c.GetHeader("X-Client-Type"), c.ClientIP(), c.GetHeader("X-Web-UUID"))
	apiErr := auth.VerifySession(c.Request.Context(), db, store, cfg, user, session, fingerprint, c.Request.UserAgent(), body.VerificationKey)
	if apiErr != nil {
		c.JSON(apiErr.HTTPStatus(), apimodels.VerifyFailureResponse{Error: apiErr.Message})
		return
	}

	c.Status(http.StatusNoContent)
}

func POSTRegister(c *gin.Context) {
	db, ok := c.MustGet("DB").(*gorm.DB)
	if !ok {
		slog.Error("POSTRegister: unable to get DB from context")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}
	cfg, ok := c.MustGet("Config").(*config.Config)
	if !ok {
		slog.Error("POSTRegister: unable to get Config from context")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "try again later"})
		return
	}

	var body apimodels.RegisterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body is invalid"})
		return
	}

	user, err := auth.Register(db, cfg, body.Username, body.Email, body.Password, body.CountryCode)
	if err != nil {
		status := http.StatusBadRequest
		if err == auth.ErrUsernameTaken || err == auth.ErrEmailTaken {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}
