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

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"gorm.io/gorm"
)

// opaqueToken returns a URL-safe random string, long enough that a
// uniqueIndex collision is not a practical concern but short of the
// spec's 500-byte column cap.
func opaqueToken() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IssueToken mints a fresh access/refresh pair for userID bound to
// clientID, deleting any prior token for the same (user, client) unless
// multi-device issuance is enabled.
func IssueToken(db *gorm.DB, cfg *config.Config, userID uint, clientID string, scopes models.StringSlice) (models.AccessToken, error) {
	if !cfg.OAuth.AllowMultipleDevices {
		if err := models.DeletePreviousTokens(db, userID, clientID); err != nil {
			return models.AccessToken{}, fmt.Errorf("failed to clear previous tokens: %w", err)
		}
	}

	access, err := opaqueToken()
	if err != nil {
		return models.AccessToken{}, err
	}
	refresh, err := opaqueToken()
	if err != nil {
		return models.AccessToken{}, err
	}

	now := time.Now()
	token := models.AccessToken{
		UserID:        userID,
		ClientID:      clientID,
		Access:        access,
		Refresh:       refresh,
		Scopes:        scopes,
		ExpiresAt:     now.Add(cfg.OAuth.AccessTokenLifetime),
		RefreshExpiry: now.Add(cfg.OAuth.RefreshTokenLifetime),
		CreatedAt:     now,
	}
	if err := db.Create(&token).Error; err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to persist token: %w", err)
	}
	return token, nil
}

// RefreshToken validates and reissues a token pair from a refresh string,
// preserving the original scopes, then replaces the old record.
func RefreshToken(db *gorm.DB, cfg *config.Config, refresh string) (models.AccessToken, error) {
	old, err := models.FindAccessTokenByRefresh(db, refresh)
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("refresh token not found: %w", err)
	}
	if time.Now().After(old.RefreshExpiry) {
		return models.AccessToken{}, fmt.Errorf("refresh token expired")
	}

	next, err := IssueToken(db, cfg, old.UserID, old.ClientID, old.Scopes)
	if err != nil {
		return models.AccessToken{}, err
	}
	if err := models.DeleteAccessToken(db, old.ID); err != nil {
		return models.AccessToken{}, fmt.Errorf("failed to invalidate old token: %w", err)
	}
	return next, nil
}

// AuthorizationCodeTTL-scoped opaque code generator for the
// authorization_code grant, stored in kv rather than the database.
func GenerateAuthorizationCode() (string, error) {
	return opaqueToken()
}
