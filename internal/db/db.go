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

package db

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/consts"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/glebarez/sqlite"
	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels lists every table the gormigrate baseline manages. New
// entities belong here, not scattered across call sites.
var allModels = []any{
	&models.User{},
	&models.UserRelation{},
	&models.AccessToken{},
	&models.LoginSession{},
	&models.TrustedDevice{},
	&models.VerificationCode{},
	&models.LoginAttempt{},
	&models.Room{},
	&models.PlaylistItem{},
	&models.PlaylistItemScore{},
	&models.ChatChannel{},
	&models.ChatChannelMember{},
	&models.ChatMessage{},
	&models.Notification{},
	&models.UserNotification{},
	&models.Beatmap{},
	&models.ScoreToken{},
	&models.Score{},
}

// MakeDB opens the gorm connection described by cfg.Database, applies the
// gormigrate baseline, and tunes the underlying sql.DB pool. An empty
// Database field with the sqlite driver opens an in-memory database, used
// by tests.
func MakeDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Metrics.OTLPEndpoint != "" {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to trace database: %w", err)
		}
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202607310001_baseline",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(allModels...)
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
	sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * consts.ConnsPerCPU)
	sqlDB.SetConnMaxIdleTime(consts.MaxIdleTime)

	slog.Info("database ready", "driver", cfg.Database.Driver)

	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.Database.Driver {
	case config.DatabaseDriverSQLite:
		return sqlite.Open(cfg.Database.Database), nil
	case config.DatabaseDriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if extra := strings.Join(cfg.Database.ExtraParameters, " "); extra != "" {
			dsn += " " + extra
		}
		return postgres.Open(dsn), nil
	case config.DatabaseDriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
		if extra := strings.Join(cfg.Database.ExtraParameters, "&"); extra != "" {
			dsn += "&" + extra
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}
