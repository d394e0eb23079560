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

// Package bot implements the "!"-prefixed chat bot commands (supplemented
// feature, grounded on the lazer-server original's BanchoBot router):
// help, roll, stats, pr, re, each a Command behind a name lookup.
package bot

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"gorm.io/gorm"
)

// Username is the reserved account name bot replies are sent from.
const Username = "BanchoBot"

// UserID resolves the bot's user id, or 0 if the bot account has not
// been provisioned (e.g. in a test database with no seed data).
func UserID(db *gorm.DB) uint {
	user, err := models.FindUserByUsername(db, Username)
	if err != nil {
		return 0
	}
	return user.ID
}

// Command is one named bot command.
type Command interface {
	Name() string
	Run(db *gorm.DB, sender models.User, args []string) string
}

// Dispatcher looks up and runs commands by name.
type Dispatcher struct {
	db       *gorm.DB
	commands map[string]Command
}

func NewDispatcher(db *gorm.DB) *Dispatcher {
	d := &Dispatcher{db: db, commands: make(map[string]Command)}
	for _, c := range []Command{
		helpCommand{},
		rollCommand{},
		statsCommand{},
		prCommand{},
		reCommand{},
	} {
		d.commands[c.Name()] = c
	}
	return d
}

// Dispatch runs the named command from a "!"-stripped message body.
// ok is false when the message names no known command, so the caller can
// silently drop it rather than reply with a bot error.
func (d *Dispatcher) Dispatch(sender models.User, body string) (reply string, ok bool) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", false
	}
	cmd, ok := d.commands[strings.ToLower(fields[0])]
	if !ok {
		return "", false
	}
	return cmd.Run(d.db, sender, fields[1:]), true
}

type helpCommand struct{}

func (helpCommand) Name() string { return "help" }
func (helpCommand) Run(*gorm.DB, models.User, []string) string {
	return "available commands: !help, !roll [n], !stats, !pr, !re"
}

type rollCommand struct{}

func (rollCommand) Name() string { return "roll" }
func (rollCommand) Run(_ *gorm.DB, _ models.User, args []string) string {
	max := 100
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			max = n
		}
	}
	return fmt.Sprintf("rolls %d point(s)", rand.Intn(max)+1)
}

type statsCommand struct{}

func (statsCommand) Name() string { return "stats" }
func (statsCommand) Run(db *gorm.DB, sender models.User, args []string) string {
	target := sender
	if len(args) > 0 {
		if u, err := models.FindUserByUsername(db, strings.Join(args, " ")); err == nil {
			target = u
		}
	}
	return fmt.Sprintf("stats for %s: country=%s restricted=%t", target.Username, target.CountryCode, target.Restricted)
}

// prCommand always replies with a fixed "no recent play" message; it does
// not look up the caller's multiplayer room or any score.
type prCommand struct{}

func (prCommand) Name() string { return "pr" }
func (prCommand) Run(*gorm.DB, models.User, []string) string {
	return "no recent play on record"
}

type reCommand struct{}

func (reCommand) Name() string { return "re" }
func (reCommand) Run(*gorm.DB, models.User, []string) string {
	return "no recent score on record"
}
