// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"gorm.io/gorm"
)

// AccessToken is an issued OAuth access/refresh token pair (spec §3).
type AccessToken struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"index"`
	ClientID      string `gorm:"index"`
	Access        string `gorm:"uniqueIndex;size:500"`
	Refresh       string `gorm:"uniqueIndex;size:500"`
	Scopes        StringSlice `gorm:"type:text"`
	ExpiresAt     time.Time
	RefreshExpiry time.Time
	CreatedAt     time.Time
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

func (t AccessToken) HasScope(scope string) bool {
	return t.Scopes.Contains(scope) || t.Scopes.Contains("*")
}

func FindAccessTokenByAccess(db *gorm.DB, access string) (AccessToken, error) {
	var t AccessToken
	err := db.Where("access = ?", access).First(&t).Error
	return t, err
}

func FindAccessTokenByRefresh(db *gorm.DB, refresh string) (AccessToken, error) {
	var t AccessToken
	err := db.Where("refresh = ?", refresh).First(&t).Error
	return t, err
}

// DeletePreviousTokens removes every token bound to (user, client). It does
// not check the multi-device setting; IssueToken skips the call when
// multi-device issuance is enabled.
func DeletePreviousTokens(db *gorm.DB, userID uint, clientID string) error {
	return db.Where("user_id = ? AND client_id = ?", userID, clientID).Delete(&AccessToken{}).Error
}

func DeleteAccessToken(db *gorm.DB, id uint) error {
	return db.Delete(&AccessToken{}, id).Error
}

func DeleteAllUserTokens(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&AccessToken{}).Error
}

// LoginSession tracks the verification state machine for a single issued
// token (spec §4.1).
type LoginSession struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index"`
	TokenID     uint   `gorm:"index"`
	IP          string
	UserAgent   string
	IsVerified  bool
	IsNewDevice bool
	WebUUID     string
	DeviceID    string
	CreatedAt   time.Time
	VerifiedAt  *time.Time
	ExpiresAt   time.Time
}

func (LoginSession) TableName() string {
	return "login_sessions"
}

func FindLoginSessionByToken(db *gorm.DB, tokenID uint) (LoginSession, error) {
	var s LoginSession
	err := db.Where("token_id = ?", tokenID).First(&s).Error
	return s, err
}

func MarkSessionVerified(db *gorm.DB, id uint) error {
	now := time.Now()
	return db.Model(&LoginSession{}).Where("id = ?", id).Updates(map[string]any{
		"is_verified": true,
		"verified_at": &now,
	}).Error
}

// TrustedDevice identifies a (user, device fingerprint) pair that bypasses
// second-factor verification for TrustConfig.DeviceTTL (spec §3/§4.1).
type TrustedDevice struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"index:idx_trust_lookup"`
	ClientType string // "client" | "web"
	Fingerprint string `gorm:"index:idx_trust_lookup"` // IP for native client, web-uuid for browser
	UserAgent  string
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

func (TrustedDevice) TableName() string {
	return "trusted_devices"
}

func IsDeviceTrusted(db *gorm.DB, userID uint, fingerprint string) bool {
	var d TrustedDevice
	err := db.Where("user_id = ? AND fingerprint = ? AND expires_at > ?", userID, fingerprint, time.Now()).First(&d).Error
	return err == nil
}

// UpsertTrustedDevice inserts or refreshes the trust window for a device.
func UpsertTrustedDevice(db *gorm.DB, userID uint, clientType, fingerprint, userAgent string, ttl time.Duration) error {
	now := time.Now()
	var d TrustedDevice
	err := db.Where("user_id = ? AND fingerprint = ?", userID, fingerprint).First(&d).Error
	if err != nil {
		d = TrustedDevice{
			UserID:      userID,
			ClientType:  clientType,
			Fingerprint: fingerprint,
			UserAgent:   userAgent,
			LastUsedAt:  now,
			ExpiresAt:   now.Add(ttl),
		}
		return db.Create(&d).Error
	}
	d.UserAgent = userAgent
	d.LastUsedAt = now
	d.ExpiresAt = now.Add(ttl)
	return db.Save(&d).Error
}

// VerificationCode is an 8-digit e-mail verification code (spec §3/§4.1).
type VerificationCode struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Email     string
	Code      string
	Used      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

// FindOutstandingVerificationCode returns the single unexpired, unused code
// for (user, e-mail), if any — a fresh request within the validity window
// must reuse it rather than mint a new one.
func FindOutstandingVerificationCode(db *gorm.DB, userID uint, email string) (VerificationCode, error) {
	var v VerificationCode
	err := db.Where("user_id = ? AND email = ? AND used = ? AND expires_at > ?", userID, email, false, time.Now()).
		Order("created_at desc").First(&v).Error
	return v, err
}

func MarkVerificationCodeUsed(db *gorm.DB, id uint) error {
	return db.Model(&VerificationCode{}).Where("id = ?", id).Update("used", true).Error
}

// LoginAttempt is an audit log row per password-grant call and per session
// verification attempt (supplemented feature, grounded on lazer-server's
// user_login_log table).
type LoginAttempt struct {
	ID        uint `gorm:"primaryKey"`
	UserID    *uint
	IP        string
	UserAgent string
	Success   bool
	Reason    string
	CreatedAt time.Time
}

func (LoginAttempt) TableName() string {
	return "login_attempts"
}

func RecordLoginAttempt(db *gorm.DB, attempt LoginAttempt) error {
	return db.Create(&attempt).Error
}

// PruneExpired deletes rows whose lifetime has passed: spent access
// tokens, stale login sessions, expired trust, and expired verification
// codes (a used code stays until it expires). Run on a daily schedule
// rather than on every read.
func PruneExpired(db *gorm.DB, now time.Time) error {
	if err := db.Where("expires_at < ? AND refresh_expiry < ?", now, now).Delete(&AccessToken{}).Error; err != nil {
		return err
	}
	if err := db.Where("expires_at < ?", now).Delete(&LoginSession{}).Error; err != nil {
		return err
	}
	if err := db.Where("expires_at < ?", now).Delete(&TrustedDevice{}).Error; err != nil {
		return err
	}
	if err := db.Where("expires_at < ?", now).Delete(&VerificationCode{}).Error; err != nil {
		return err
	}
	return nil
}
