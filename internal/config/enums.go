// SPDX-License-Identifier: AGPL-3.0-or-later

package config

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// DatabaseDriver represents the gorm database driver used.
type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
)

// SMTPAuthMethod represents the SASL authentication method used for SMTP.
type SMTPAuthMethod string

const (
	SMTPAuthMethodPlain SMTPAuthMethod = "plain"
	SMTPAuthMethodLogin SMTPAuthMethod = "login"
	SMTPAuthMethodNone  SMTPAuthMethod = "none"
)
