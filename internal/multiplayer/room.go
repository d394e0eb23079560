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

package multiplayer

import (
	"sync"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
)

// RoomUser is the live, in-memory per-user state within a Room (spec §3
// "RoomUser"). The persisted Room/PlaylistItem rows hold only what must
// survive a server restart; everything ephemeral lives here.
type RoomUser struct {
	UserID             uint
	State              UserState
	AvailabilityState  string
	AvailabilityPct    float64
	Mods               []string
	BeatmapID          *uint64
	RulesetID          *models.Ruleset
}

// Room is the authoritative in-memory room, guarded by mu for every
// mutation; the Manager methods take the lock first, most of them through
// lockUserRoom.
type Room struct {
	mu sync.Mutex

	ID         uint
	Name       string
	Type       RoomType
	QueueMode  QueueMode
	State      RoomState
	HostID     uint
	Password   string
	AutoSkip   bool
	AutoStartDuration time.Duration
	ChannelID  uint

	Users     []*RoomUser
	Items     []*models.PlaylistItem
	CurrentItemIdx int

	countdowns map[CountdownKind]*countdown
	queue      queuePolicy
	matchType  matchTypeHandler

	broadcast func(event string, payload any)
}

func newRoom(id uint, hostID uint, name string, roomType RoomType, queueMode QueueMode, broadcast func(string, any)) *Room {
	r := &Room{
		ID:         id,
		Name:       name,
		Type:       roomType,
		QueueMode:  queueMode,
		State:      RoomOpen,
		HostID:     hostID,
		countdowns: make(map[CountdownKind]*countdown),
		broadcast:  broadcast,
	}
	r.queue = newQueuePolicy(queueMode, r)
	r.matchType = newMatchTypeHandler(roomType)
	return r
}

func (r *Room) userByID(userID uint) *RoomUser {
	for _, u := range r.Users {
		if u.UserID == userID {
			return u
		}
	}
	return nil
}

func (r *Room) removeUser(userID uint) {
	for i, u := range r.Users {
		if u.UserID == userID {
			r.Users = append(r.Users[:i], r.Users[i+1:]...)
			return
		}
	}
}

// currentItem returns the active (non-expired) playlist item, or nil if
// the queue is empty.
func (r *Room) currentItem() *models.PlaylistItem {
	if r.CurrentItemIdx < 0 || r.CurrentItemIdx >= len(r.Items) {
		return nil
	}
	return r.Items[r.CurrentItemIdx]
}

func (r *Room) anyReady() bool {
	for _, u := range r.Users {
		if u.State == StateReady {
			return true
		}
	}
	return false
}

func (r *Room) setState(s RoomState) {
	r.State = s
	r.broadcast("RoomStateChanged", s)
}
