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
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"gorm.io/gorm"
)

// DeviceFingerprint picks the identifier used to look up device trust: the
// caller's IP for native clients, the browser's persisted web-uuid for the
// web client.
func DeviceFingerprint(clientType, ip, webUUID string) string {
	if clientType == "web" {
		return webUUID
	}
	return ip
}

func TrustDevice(db *gorm.DB, cfg *config.Config, userID uint, clientType, fingerprint, userAgent string) error {
	return models.UpsertTrustedDevice(db, userID, clientType, fingerprint, userAgent, cfg.Trust.DeviceTTL)
}

func IsTrusted(db *gorm.DB, userID uint, fingerprint string) bool {
	return models.IsDeviceTrusted(db, userID, fingerprint)
}
