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
	"fmt"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
)

// queuePolicy encapsulates the per-QueueMode rules for adding, editing,
// removing, and advancing playlist items (spec §4.3 "Queue policies").
type queuePolicy interface {
	canAdd(userID uint, r *Room) error
	addItem(r *Room, item *models.PlaylistItem) error
	editItem(r *Room, itemID uint, mutate func(*models.PlaylistItem)) error
	removeItem(r *Room, itemID uint) error
	finishCurrentItem(r *Room)
}

func newQueuePolicy(mode QueueMode, r *Room) queuePolicy {
	switch mode {
	case QueueAllPlayers:
		return allPlayersQueue{}
	case QueueRoundRobin:
		return roundRobinQueue{}
	default:
		return hostOnlyQueue{}
	}
}

func appendItem(r *Room, item *models.PlaylistItem) {
	item.PlaylistOrder = len(r.Items)
	r.Items = append(r.Items, item)
	r.broadcast("PlaylistItemAdded", item)
}

func findItem(r *Room, itemID uint) (int, *models.PlaylistItem) {
	for i, item := range r.Items {
		if item.ID == itemID {
			return i, item
		}
	}
	return -1, nil
}

// advanceToNextNonExpired picks the next item ordered by (expired asc,
// playlist-order asc, id asc), per spec §3's PlaylistItem ordering.
func advanceToNextNonExpired(r *Room) {
	best := -1
	for i, item := range r.Items {
		if item.Expired {
			continue
		}
		if best == -1 || item.PlaylistOrder < r.Items[best].PlaylistOrder {
			best = i
		}
	}
	r.CurrentItemIdx = best
	if best >= 0 {
		r.broadcast("PlaylistItemChanged", r.Items[best])
	}
}

type hostOnlyQueue struct{}

func (hostOnlyQueue) canAdd(userID uint, r *Room) error {
	if userID != r.HostID {
		return fmt.Errorf("only the host may add playlist items in host-only mode")
	}
	return nil
}

func (q hostOnlyQueue) addItem(r *Room, item *models.PlaylistItem) error {
	appendItem(r, item)
	return nil
}

func (hostOnlyQueue) editItem(r *Room, itemID uint, mutate func(*models.PlaylistItem)) error {
	_, item := findItem(r, itemID)
	if item == nil {
		return fmt.Errorf("playlist item %d not found", itemID)
	}
	mutate(item)
	r.broadcast("PlaylistItemChanged", item)
	return nil
}

func (hostOnlyQueue) removeItem(r *Room, itemID uint) error {
	i, item := findItem(r, itemID)
	if item == nil {
		return fmt.Errorf("playlist item %d not found", itemID)
	}
	r.Items = append(r.Items[:i], r.Items[i+1:]...)
	r.broadcast("PlaylistItemRemoved", itemID)
	return nil
}

func (hostOnlyQueue) finishCurrentItem(r *Room) {
	if item := r.currentItem(); item != nil {
		item.Expired = true
	}
	advanceToNextNonExpired(r)
}

// allPlayersQueue allows any room member to append; otherwise identical
// to hostOnlyQueue.
type allPlayersQueue struct{ hostOnlyQueue }

func (allPlayersQueue) canAdd(uint, *Room) error { return nil }

// roundRobinQueue interleaves each owner's items so no single player can
// monopolize the queue (spec §4.3 "round-robin interleaves per owner").
type roundRobinQueue struct{ hostOnlyQueue }

func (roundRobinQueue) canAdd(uint, *Room) error { return nil }

func (roundRobinQueue) finishCurrentItem(r *Room) {
	if item := r.currentItem(); item != nil {
		item.Expired = true
	}

	lastOwner := uint(0)
	if item := r.currentItem(); item != nil {
		lastOwner = item.OwnerID
	}

	best := -1
	for i, item := range r.Items {
		if item.Expired || item.OwnerID == lastOwner {
			continue
		}
		if best == -1 || item.PlaylistOrder < r.Items[best].PlaylistOrder {
			best = i
		}
	}
	if best == -1 {
		advanceToNextNonExpired(r)
		return
	}
	r.CurrentItemIdx = best
	r.broadcast("PlaylistItemChanged", r.Items[best])
}
