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
	"crypto/sha1" //nolint:gosec // required by the HIBP k-anonymity range query, not a security use
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	gopwned "github.com/mavjs/goPwned"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken    = fmt.Errorf("username is already taken")
	ErrEmailTaken       = fmt.Errorf("email is already registered")
	ErrPasswordBlank    = fmt.Errorf("password cannot be blank")
	ErrPasswordBreached = fmt.Errorf("password has been reported in a data breach, please use another one")
)

// CheckPasswordBreached queries the Have I Been Pwned range API via its
// k-anonymity protocol: only the first 5 hex chars of the SHA1 digest
// leave the server.
func CheckPasswordBreached(apiKey, password string) (bool, error) {
	if apiKey == "" {
		return false, nil
	}

	client := gopwned.NewClient(nil, apiKey)
	h := sha1.New() //nolint:gosec
	h.Write([]byte(password))
	sum := fmt.Sprintf("%X", h.Sum(nil))
	prefix, suffix := sum[0:5], sum[5:40]

	resp, err := client.GetPwnedPasswords(prefix, false)
	if err != nil {
		return false, fmt.Errorf("failed to query breached-password database: %w", err)
	}

	for _, line := range strings.Split(string(resp), "\r\n") {
		parts := strings.Split(line, ":")
		if len(parts) != 2 || parts[0] != suffix {
			continue
		}
		count, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("failed to parse breach count: %w", err)
		}
		return count > 0, nil
	}
	return false, nil
}

// Register creates a new User row, rejecting blank passwords, taken
// usernames/e-mails, and (when configured) breached passwords.
func Register(db *gorm.DB, cfg *config.Config, username, email, password, countryCode string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrPasswordBlank
	}

	if _, err := models.FindUserByUsername(db, username); err == nil {
		return models.User{}, ErrUsernameTaken
	}
	if _, err := models.FindUserByEmail(db, email); err == nil {
		return models.User{}, ErrEmailTaken
	}

	breached, err := CheckPasswordBreached(cfg.Security.HIBPAPIKey, password)
	if err != nil {
		return models.User{}, err
	}
	if breached {
		return models.User{}, ErrPasswordBreached
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		CountryCode:  countryCode,
		LastVisit:    time.Now(),
		CreatedAt:    time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		return models.User{}, fmt.Errorf("failed to persist user: %w", err)
	}
	return user, nil
}
