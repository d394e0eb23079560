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

package bot_test

import (
	"fmt"
	"testing"

	"github.com/USA-RedDragon/DMRHub/internal/chat/bot"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/configulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	defConfig, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	defConfig.Database.Database = ""
	defConfig.Database.ExtraParameters = []string{}
	database, err := db.MakeDB(&defConfig)
	require.NoError(t, err)
	return database
}

func TestDispatchUnknownCommand(t *testing.T) {
	t.Parallel()
	d := bot.NewDispatcher(testDB(t))

	_, ok := d.Dispatch(models.User{ID: 1, Username: "player"}, "notacommand")
	assert.False(t, ok)
}

func TestDispatchEmptyBody(t *testing.T) {
	t.Parallel()
	d := bot.NewDispatcher(testDB(t))

	_, ok := d.Dispatch(models.User{ID: 1}, "")
	assert.False(t, ok)
}

func TestDispatchHelp(t *testing.T) {
	t.Parallel()
	d := bot.NewDispatcher(testDB(t))

	reply, ok := d.Dispatch(models.User{ID: 1}, "help")
	assert.True(t, ok)
	assert.Contains(t, reply, "!roll")
}

func TestDispatchRollIsCaseInsensitiveAndBounded(t *testing.T) {
	t.Parallel()
	d := bot.NewDispatcher(testDB(t))

	reply, ok := d.Dispatch(models.User{ID: 1}, "ROLL 10")
	assert.True(t, ok)
	assert.Contains(t, reply, "rolls")

	var n int
	_, err := fmt.Sscanf(reply, "rolls %d point(s)", &n)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 10)
}

func TestDispatchStatsDefaultsToSender(t *testing.T) {
	t.Parallel()
	d := bot.NewDispatcher(testDB(t))

	reply, ok := d.Dispatch(models.User{ID: 1, Username: "someone", CountryCode: "US"}, "stats")
	assert.True(t, ok)
	assert.Contains(t, reply, "someone")
	assert.Contains(t, reply, "US")
}

func TestUserIDReturnsZeroWhenBotNotProvisioned(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint(0), bot.UserID(testDB(t)))
}

func TestUserIDResolvesProvisionedBot(t *testing.T) {
	t.Parallel()
	database := testDB(t)
	require.NoError(t, database.Create(&models.User{Username: bot.Username, IsBot: true}).Error)

	id := bot.UserID(database)
	assert.NotZero(t, id)
}
