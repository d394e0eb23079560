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
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// EnrollmentDraft is held in kv for cfg.TOTP.DraftTTL while the user scans
// the QR and confirms a code, so an abandoned enrollment never touches the
// User row.
type EnrollmentDraft struct {
	Secret      string   `json:"secret"`
	Failures    int      `json:"failures"`
	BackupCodes []string `json:"backup_codes"`
}

func draftKey(userID uint) string {
	return fmt.Sprintf("totp_draft:%d", userID)
}

// BeginEnrollment generates a fresh secret and backup-code set, stores
// them as a draft under userID with the configured TTL, and returns a PNG
// QR code encoding the otpauth:// URI.
func BeginEnrollment(ctx context.Context, store kv.KV, cfg *config.Config, userID uint, username string) ([]byte, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      cfg.TOTP.Issuer,
		AccountName: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp key: %w", err)
	}

	codes, err := generateBackupCodes(cfg.TOTP.BackupCodeCount)
	if err != nil {
		return nil, err
	}

	draft := EnrollmentDraft{Secret: key.Secret(), BackupCodes: codes}
	encoded, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, draftKey(userID), encoded); err != nil {
		return nil, err
	}
	if err := store.Expire(ctx, draftKey(userID), cfg.TOTP.DraftTTL); err != nil {
		return nil, err
	}

	qrCode, err := qr.Encode(key.String(), qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	qrCode, err = barcode.Scale(qrCode, 256, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to scale qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return nil, fmt.Errorf("failed to encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}

func generateBackupCodes(count int) ([]string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codes := make([]string, count)
	for i := range codes {
		buf := make([]byte, 10)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		out := make([]byte, 10)
		for j, b := range buf {
			out[j] = alphabet[int(b)%len(alphabet)]
		}
		codes[i] = string(out)
	}
	return codes, nil
}

// ConfirmEnrollment validates the user's first TOTP code against the draft
// and, on success, commits the secret and backup codes to the User row.
// Three failures discard the draft (spec §4.1 state machine).
func ConfirmEnrollment(ctx context.Context, store kv.KV, db *gorm.DB, cfg *config.Config, userID uint, code string) error {
	raw, err := store.Get(ctx, draftKey(userID))
	if err != nil {
		return fmt.Errorf("no enrollment in progress: %w", err)
	}
	var draft EnrollmentDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return fmt.Errorf("corrupt enrollment draft: %w", err)
	}

	if !totp.Validate(code, draft.Secret) {
		draft.Failures++
		if draft.Failures >= cfg.TOTP.DraftMaxFailures {
			return store.Delete(ctx, draftKey(userID))
		}
		encoded, err := json.Marshal(draft)
		if err != nil {
			return err
		}
		if err := store.Set(ctx, draftKey(userID), encoded); err != nil {
			return err
		}
		return store.Expire(ctx, draftKey(userID), cfg.TOTP.DraftTTL)
	}

	err = db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"totp_secret":  draft.Secret,
		"totp_enabled": true,
		"backup_codes": models.StringSlice(draft.BackupCodes),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to commit totp enrollment: %w", err)
	}
	return store.Delete(ctx, draftKey(userID))
}

func ValidateTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
