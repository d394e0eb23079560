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
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/apierrors"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"gorm.io/gorm"
)

// Grant is one of the four token-endpoint grant types spec §4.1 supports.
type Grant string

const (
	GrantPassword          Grant = "password"
	GrantRefreshToken      Grant = "refresh_token"
	GrantAuthorizationCode Grant = "authorization_code"
	GrantClientCredentials Grant = "client_credentials"
)

// TokenRequest carries the union of inputs the four grants accept; only
// the fields relevant to Grant are read.
type TokenRequest struct {
	Grant        Grant
	Identifier   string
	Password     string
	RefreshToken string
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	IP           net.IP
	UserAgent    string
	ClientType   string
	WebUUID      string
	SupportsTOTP bool
}

// TokenResult is the success shape rendered into the OAuth token envelope.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scope        string
	VerifyMethod Method
}

type authorizationCodeGrant struct {
	UserID uint     `json:"user_id"`
	Scopes []string `json:"scopes"`
}

func authCodeKey(code string) string {
	return fmt.Sprintf("authorization_code:%s", code)
}

// IssueAuthorizationCode stores a single-use code → (user, scopes) mapping
// in kv with the configured TTL, for the authorization_code grant.
func IssueAuthorizationCode(ctx context.Context, store kv.KV, cfg *config.Config, userID uint, scopes models.StringSlice) (string, error) {
	code, err := GenerateAuthorizationCode()
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(authorizationCodeGrant{UserID: userID, Scopes: scopes})
	if err != nil {
		return "", err
	}
	if err := store.Set(ctx, authCodeKey(code), encoded); err != nil {
		return "", err
	}
	if err := store.Expire(ctx, authCodeKey(code), cfg.OAuth.AuthorizationCodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

func validateClient(cfg *config.Config, clientID, clientSecret string) bool {
	secret, ok := cfg.OAuth.ClientSecrets[clientID]
	return ok && secret == clientSecret
}

// Token dispatches a TokenRequest to the grant it names, returning a
// TokenResult on success or a typed apierrors.Error ready for
// WriteOAuthEnvelope.
func Token(ctx context.Context, db *gorm.DB, store kv.KV, cfg *config.Config, req TokenRequest) (TokenResult, *apierrors.Error) {
	switch req.Grant {
	case GrantPassword:
		return passwordGrant(ctx, db, store, cfg, req)
	case GrantRefreshToken:
		return refreshTokenGrant(db, cfg, req)
	case GrantAuthorizationCode:
		return authorizationCodeGrantHandler(ctx, db, store, cfg, req)
	case GrantClientCredentials:
		return clientCredentialsGrant(db, cfg, req)
	default:
		return TokenResult{}, apierrors.New(apierrors.KindInvocation, "unsupported grant_type")
	}
}

func passwordGrant(ctx context.Context, db *gorm.DB, store kv.KV, cfg *config.Config, req TokenRequest) (TokenResult, *apierrors.Error) {
	user, err := models.FindUserByIdentifier(db, req.Identifier)
	if err != nil {
		recordAttempt(db, nil, req, false, "unknown_identifier")
		return TokenResult{}, apierrors.New(apierrors.KindAuth, "invalid_credentials")
	}

	if !VerifyPassword(user.PasswordHash, req.Password) {
		recordAttempt(db, &user.ID, req, false, "bad_password")
		return TokenResult{}, apierrors.New(apierrors.KindAuth, "invalid_credentials")
	}

	token, err := IssueToken(db, cfg, user.ID, req.ClientID, models.StringSlice{"*"})
	if err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "failed to issue token", err)
	}

	fingerprint := DeviceFingerprint(req.ClientType, ipString(req.IP), req.WebUUID)
	session := models.LoginSession{
		UserID:      user.ID,
		TokenID:     token.ID,
		IP:          ipString(req.IP),
		UserAgent:   req.UserAgent,
		IsNewDevice: !IsTrusted(db, user.ID, fingerprint),
		WebUUID:     req.WebUUID,
		DeviceID:    fingerprint,
		CreatedAt:   time.Now(),
		ExpiresAt:   token.ExpiresAt,
	}
	if err := db.Create(&session).Error; err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "failed to persist login session", err)
	}

	method, err := ChooseVerificationMethod(ctx, db, store, cfg, user, session, fingerprint, req.UserAgent, req.SupportsTOTP)
	if err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "failed to choose verification method", err)
	}

	recordAttempt(db, &user.ID, req, true, "")
	return TokenResult{
		AccessToken:  token.Access,
		RefreshToken: token.Refresh,
		ExpiresIn:    int64(time.Until(token.ExpiresAt).Seconds()),
		Scope:        "*",
		VerifyMethod: method,
	}, nil
}

func refreshTokenGrant(db *gorm.DB, cfg *config.Config, req TokenRequest) (TokenResult, *apierrors.Error) {
	token, err := RefreshToken(db, cfg, req.RefreshToken)
	if err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "invalid_grant", err)
	}
	return TokenResult{
		AccessToken:  token.Access,
		RefreshToken: token.Refresh,
		ExpiresIn:    int64(time.Until(token.ExpiresAt).Seconds()),
		Scope:        joinScopes(token.Scopes),
	}, nil
}

func authorizationCodeGrantHandler(ctx context.Context, db *gorm.DB, store kv.KV, cfg *config.Config, req TokenRequest) (TokenResult, *apierrors.Error) {
	if !validateClient(cfg, req.ClientID, req.ClientSecret) {
		return TokenResult{}, apierrors.New(apierrors.KindAuth, "invalid_client")
	}

	raw, err := store.Get(ctx, authCodeKey(req.Code))
	if err != nil {
		return TokenResult{}, apierrors.New(apierrors.KindAuth, "invalid_grant")
	}
	var grant authorizationCodeGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "corrupt authorization code", err)
	}
	_ = store.Delete(ctx, authCodeKey(req.Code))

	token, err := IssueToken(db, cfg, grant.UserID, req.ClientID, models.StringSlice(grant.Scopes))
	if err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "failed to issue token", err)
	}
	return TokenResult{
		AccessToken:  token.Access,
		RefreshToken: token.Refresh,
		ExpiresIn:    int64(time.Until(token.ExpiresAt).Seconds()),
		Scope:        joinScopes(token.Scopes),
	}, nil
}

func clientCredentialsGrant(db *gorm.DB, cfg *config.Config, req TokenRequest) (TokenResult, *apierrors.Error) {
	if !validateClient(cfg, req.ClientID, req.ClientSecret) {
		return TokenResult{}, apierrors.New(apierrors.KindAuth, "invalid_client")
	}
	if req.Scope != "public" {
		return TokenResult{}, apierrors.New(apierrors.KindInvocation, "client_credentials requires scope=public")
	}

	token, err := IssueToken(db, cfg, cfg.OAuth.ClientCredentialsBot, req.ClientID, models.StringSlice{"public"})
	if err != nil {
		return TokenResult{}, apierrors.Wrap(apierrors.KindAuth, "failed to issue token", err)
	}
	return TokenResult{
		AccessToken:  token.Access,
		RefreshToken: token.Refresh,
		ExpiresIn:    int64(time.Until(token.ExpiresAt).Seconds()),
		Scope:        "public",
	}, nil
}

func recordAttempt(db *gorm.DB, userID *uint, req TokenRequest, success bool, reason string) {
	_ = models.RecordLoginAttempt(db, models.LoginAttempt{
		UserID:    userID,
		IP:        ipString(req.IP),
		UserAgent: req.UserAgent,
		Success:   success,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func joinScopes(scopes models.StringSlice) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
