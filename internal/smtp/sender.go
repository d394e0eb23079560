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

package smtp

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var (
	ErrEmailDisabled     = errors.New("email is disabled, but an email was attempted to be sent")
	ErrInvalidAuthMethod = errors.New("invalid SMTP auth method")
	ErrSendingEmail      = errors.New("error sending email")
)

// Send delivers an HTML e-mail, retrying any failure with exponential
// backoff (the n-th retry waits cfg.SMTP.RetryBaseDelay * 2^(n-1)) up to
// cfg.SMTP.RetryAttempts tries before giving up.
func Send(cfg *config.Config, toEmail, subject, body string) error {
	if !cfg.SMTP.Enabled {
		slog.Error("email is disabled, but an email was attempted to be sent", "to", toEmail)
		return ErrEmailDisabled
	}

	var auth sasl.Client
	switch cfg.SMTP.AuthMethod {
	case config.SMTPAuthMethodPlain:
		auth = sasl.NewPlainClient("", cfg.SMTP.Username, cfg.SMTP.Password)
	case config.SMTPAuthMethodLogin:
		auth = sasl.NewLoginClient(cfg.SMTP.Username, cfg.SMTP.Password)
	case config.SMTPAuthMethodNone:
		auth = nil
	default:
		slog.Error("invalid SMTP auth method", "method", cfg.SMTP.AuthMethod)
		return ErrInvalidAuthMethod
	}

	rawMsg := fmt.Sprintf("From: %s <%s>\r\n", cfg.NetworkName, cfg.SMTP.From) +
		fmt.Sprintf("To: %s\r\n", toEmail) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"Mime-Version: 1.0;\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\";\r\n" +
		"Content-Transfer-Encoding: 7bit;\r\n" +
		"\r\n<html><body>" + body + "\r\n</body></html>\r\n"

	addr := fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)

	var lastErr error
	for attempt := 0; attempt < cfg.SMTP.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := cfg.SMTP.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}

		msg := strings.NewReader(rawMsg)
		var err error
		if cfg.SMTP.ImplicitTLS {
			err = smtp.SendMailTLS(addr, auth, cfg.SMTP.From, []string{toEmail}, msg)
		} else {
			err = smtp.SendMail(addr, auth, cfg.SMTP.From, []string{toEmail}, msg)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("failed to send email, will retry", "attempt", attempt+1, "error", err)
	}

	slog.Error("exhausted email retry attempts", "error", lastErr)
	return ErrSendingEmail
}
