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

// Package apierrors gives every HTTP handler and hub method a single typed
// error shape, rendered differently depending on the transport that
// surfaces it (OAuth token envelope, plain JSON detail body, or a hub
// Completion error string).
package apierrors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is the coarse classification of an API error.
type Kind string

const (
	KindInvocation   Kind = "invocation-error"
	KindAuth         Kind = "auth-error"
	KindVerification Kind = "verification-error"
	KindNotFound     Kind = "not-found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindUpstream     Kind = "upstream-error"
)

var statusByKind = map[Kind]int{
	KindInvocation:   http.StatusBadRequest,
	KindAuth:         http.StatusUnauthorized,
	KindVerification: http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindForbidden:    http.StatusForbidden,
	KindUpstream:     http.StatusBadGateway,
}

// Error is a typed API error carrying enough information to render any of
// the three response shapes the server needs.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteDetail renders the plain `{"detail": "..."}` body most REST
// endpoints use.
func (e *Error) WriteDetail(c *gin.Context) {
	c.JSON(e.HTTPStatus(), gin.H{"detail": e.Message})
}

// WriteOAuthEnvelope renders the OAuth token-endpoint error envelope
// (`{"error": "...", "error_description": "..."}`).
func (e *Error) WriteOAuthEnvelope(c *gin.Context) {
	oauthError := "invalid_request"
	switch e.Kind {
	case KindAuth:
		oauthError = "invalid_grant"
	case KindVerification:
		oauthError = "verification_required"
	case KindForbidden:
		oauthError = "access_denied"
	}
	c.JSON(e.HTTPStatus(), gin.H{"error": oauthError, "error_description": e.Message})
}

// CompletionError renders the error string carried in a hub Completion
// packet's error field.
func (e *Error) CompletionError() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
