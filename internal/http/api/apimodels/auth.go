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

// Package apimodels holds the JSON request/response shapes bound by the
// HTTP handlers, kept separate from internal/db/models so wire format can
// drift independently of storage layout.
package apimodels

// TokenRequest is the body of POST /oauth/token, a superset of the four
// grants' fields (spec §4.1).
type TokenRequest struct {
	GrantType    string `json:"grant_type" binding:"required"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope"`
}

// TokenResponse is the success body of POST /oauth/token.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Scope            string `json:"scope"`
	VerificationType string `json:"verification_type,omitempty"`
}

// OAuthErrorResponse is the RFC 6749 error envelope.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	CountryCode string `json:"country_code"`
}

// VerifyRequest is the body of POST /session/verify.
type VerifyRequest struct {
	VerificationKey string `json:"verification_key" binding:"required"`
}

// VerifyFailureResponse is returned on a failed verification attempt.
type VerifyFailureResponse struct {
	Error  string `json:"error"`
	Method string `json:"method,omitempty"`
}
