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
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/apierrors"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/USA-RedDragon/DMRHub/internal/smtp"
	"gorm.io/gorm"
)

// Method is the second factor chosen for a login session.
type Method string

const (
	MethodTOTP Method = "totp"
	MethodMail Method = "mail"
	MethodNone Method = ""
)

func methodKey(userID, tokenID uint) string {
	return fmt.Sprintf("session_verification_method:%d:%d", userID, tokenID)
}

func replayKey(userID uint, code string) string {
	return fmt.Sprintf("totp_replay:%d:%s", userID, code)
}

// ChooseVerificationMethod implements spec §4.1's method-selection
// decision tree, upserting trust and marking the session verified when no
// second factor is required.
func ChooseVerificationMethod(ctx context.Context, db *gorm.DB, store kv.KV, cfg *config.Config, user models.User, session models.LoginSession, fingerprint, userAgent string, clientSupportsTOTP bool) (Method, error) {
	if clientSupportsTOTP && user.TOTPEnabled && user.TOTPSecret != "" {
		return MethodTOTP, store.Set(ctx, methodKey(user.ID, session.TokenID), []byte(MethodTOTP))
	}

	trusted := models.IsDeviceTrusted(db, user.ID, fingerprint)
	if !trusted && cfg.Trust.EmailEnabled {
		if err := sendVerificationEmail(ctx, db, cfg, user); err != nil {
			return MethodNone, err
		}
		return MethodMail, store.Set(ctx, methodKey(user.ID, session.TokenID), []byte(MethodMail))
	}

	if err := models.MarkSessionVerified(db, session.ID); err != nil {
		return MethodNone, err
	}
	if err := TrustDevice(db, cfg, user.ID, "client", fingerprint, userAgent); err != nil {
		return MethodNone, err
	}
	return MethodNone, nil
}

func sendVerificationEmail(ctx context.Context, db *gorm.DB, cfg *config.Config, user models.User) error {
	existing, err := models.FindOutstandingVerificationCode(db, user.ID, user.Email)
	if err == nil {
		return smtp.Send(cfg, user.Email, "Verify your login", fmt.Sprintf("Your verification code is <b>%s</b>", existing.Code))
	}

	code, err := randomDigits(8)
	if err != nil {
		return err
	}
	vc := models.VerificationCode{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(cfg.Trust.EmailCodeTTL),
	}
	if err := db.Create(&vc).Error; err != nil {
		return fmt.Errorf("failed to persist verification code: %w", err)
	}
	_ = ctx
	return smtp.Send(cfg, user.Email, "Verify your login", fmt.Sprintf("Your verification code is <b>%s</b>", code))
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0') + byte(d.Int64())
	}
	return string(digits), nil
}

// VerifySession validates a verification_key against the method recorded
// for (user, token) and, on success, flips the session to verified and
// trusts the device. Replay of an already-accepted TOTP code within its
// time-step window is rejected.
func VerifySession(ctx context.Context, db *gorm.DB, store kv.KV, cfg *config.Config, user models.User, session models.LoginSession, fingerprint, userAgent, key string) *apierrors.Error {
	methodRaw, err := store.Get(ctx, methodKey(user.ID, session.TokenID))
	if err != nil {
		return apierrors.New(apierrors.KindVerification, "no verification in progress")
	}
	method := Method(methodRaw)

	recordVerification := func(success bool, reason string) {
		_ = models.RecordLoginAttempt(db, models.LoginAttempt{
			UserID: &user.ID, IP: session.IP, UserAgent: userAgent,
			Success: success, Reason: reason, CreatedAt: time.Now(),
		})
	}

	var ok bool
	switch {
	case method == MethodTOTP && len(key) == 6:
		if seen, _ := store.Has(ctx, replayKey(user.ID, key)); seen {
			recordVerification(false, "incorrect_key")
			return apierrors.New(apierrors.KindVerification, "incorrect_key")
		}
		ok = ValidateTOTPCode(user.TOTPSecret, key)
		if ok {
			window := time.Duration(cfg.TOTP.ReplayWindowSecs) * time.Second
			_ = store.Set(ctx, replayKey(user.ID, key), []byte{1})
			_ = store.Expire(ctx, replayKey(user.ID, key), window)
		}
	case method == MethodMail && len(key) == 8:
		vc, vcErr := models.FindOutstandingVerificationCode(db, user.ID, user.Email)
		ok = vcErr == nil && vc.Code == key
		if ok {
			_ = models.MarkVerificationCodeUsed(db, vc.ID)
		}
	case len(key) == 10:
		codes := models.StringSlice(user.BackupCodes)
		ok = codes.Contains(key)
		if ok {
			remaining := codes.Remove(key)
			_ = db.Model(&user).Update("backup_codes", remaining).Error
		}
	}

	if !ok {
		recordVerification(false, "incorrect_key")
		return apierrors.New(apierrors.KindVerification, "incorrect_key")
	}

	if err := models.MarkSessionVerified(db, session.ID); err != nil {
		return apierrors.Wrap(apierrors.KindVerification, "failed to mark session verified", err)
	}
	if err := TrustDevice(db, cfg, user.ID, "client", fingerprint, userAgent); err != nil {
		return apierrors.Wrap(apierrors.KindVerification, "failed to trust device", err)
	}
	if err := store.Delete(ctx, methodKey(user.ID, session.TokenID)); err != nil {
		return apierrors.Wrap(apierrors.KindVerification, "failed to clear verification state", err)
	}
	recordVerification(true, "")
	return nil
}
