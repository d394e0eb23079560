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
	"crypto/md5" //nolint:gosec // part of the legacy hash scheme itself, not used for security here
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// md5BcryptCache short-circuits repeat legacy verifications: bcrypt hash ->
// the md5 hex digest that most recently verified against it.
var md5BcryptCache sync.Map

// HashPassword produces the legacy md5(plaintext) -> bcrypt(md5_hex) hash,
// required for interop with the existing client/account base (spec §4.1).
func HashPassword(plaintext string) (string, error) {
	sum := md5.Sum([]byte(plaintext)) //nolint:gosec
	md5Hex := hex.EncodeToString(sum[:])
	hashed, err := bcrypt.GenerateFromPassword([]byte(md5Hex), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks plaintext against a stored hash, trying the legacy
// md5->bcrypt path first and falling back to plain bcrypt for interop with
// hashes minted outside the legacy pipeline.
func VerifyPassword(stored, plaintext string) bool {
	if cached, ok := md5BcryptCache.Load(stored); ok {
		sum := md5.Sum([]byte(plaintext)) //nolint:gosec
		if cached.(string) == hex.EncodeToString(sum[:]) {
			return true
		}
	}

	sum := md5.Sum([]byte(plaintext)) //nolint:gosec
	md5Hex := hex.EncodeToString(sum[:])
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(md5Hex)) == nil {
		md5BcryptCache.Store(stored, md5Hex)
		return true
	}

	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil {
		return true
	}

	return false
}
