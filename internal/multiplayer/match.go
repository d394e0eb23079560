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
	"time"
)

const forceGameplayStartDelay = 15 * time.Second

// StartMatch runs the seven-step start-of-match sequence from spec §4.3:
// validate host + readiness, move the room to waiting-for-load, move
// every non-spectating user to waiting-for-load, wait for all loads (or
// the force-gameplay-start countdown), then flip to playing.
func (m *Manager) StartMatch(hostID uint) error {
	room, _, unlock, err := m.lockUserRoom(hostID)
	if err != nil {
		return err
	}
	defer unlock()

	if room.HostID != hostID {
		return fmt.Errorf("only the host may start the match")
	}
	if room.State != RoomOpen {
		return fmt.Errorf("room is not open")
	}
	if room.currentItem() == nil {
		return fmt.Errorf("room has no playlist item to play")
	}
	if !room.anyReady() {
		return fmt.Errorf("no users are ready")
	}

	room.stopCountdown(CountdownMatchStart)
	room.setState(RoomWaitingForLoad)

	for _, u := range room.Users {
		if u.State == StateSpectating {
			continue
		}
		u.State = StateWaitingForLoad
		room.broadcast("UserStateChanged", u.UserID, u.State)
	}
	room.broadcast("LoadRequested", nil)

	room.startCountdown(CountdownForceGameplayStart, true, forceGameplayStartDelay, func() {
		room.mu.Lock()
		defer room.mu.Unlock()
		m.beginGameplayLocked(room)
	})

	m.maybeBeginGameplayLocked(room)
	return nil
}

// OnUserLoaded advances a waiting-for-load user to loaded, and begins
// gameplay immediately once every non-spectating user has loaded.
func (m *Manager) OnUserLoaded(userID uint) error {
	room, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if ru.State != StateWaitingForLoad {
		return fmt.Errorf("user is not waiting to load")
	}
	ru.State = StateLoaded
	room.broadcast("UserStateChanged", userID, ru.State)

	m.maybeBeginGameplayLocked(room)
	return nil
}

// maybeBeginGameplayLocked starts gameplay once every non-spectating user
// has finished loading, short-circuiting the force-gameplay-start
// countdown. Caller must hold room.mu.
func (m *Manager) maybeBeginGameplayLocked(room *Room) {
	if room.State != RoomWaitingForLoad {
		return
	}
	for _, u := range room.Users {
		if u.State == StateSpectating {
			continue
		}
		if u.State != StateLoaded {
			return
		}
	}
	room.stopCountdown(CountdownForceGameplayStart)
	m.beginGameplayLocked(room)
}

// beginGameplayLocked flips every loaded user to ready-for-gameplay, then
// playing, and moves the room to playing. Users that never finished
// loading are forced to spectate for this item. Caller must hold room.mu.
func (m *Manager) beginGameplayLocked(room *Room) {
	for _, u := range room.Users {
		switch u.State {
		case StateLoaded:
			u.State = StateReadyForGameplay
			room.broadcast("UserStateChanged", u.UserID, u.State)
		case StateWaitingForLoad:
			u.State = StateSpectating
			room.broadcast("UserStateChanged", u.UserID, u.State)
		}
	}
	for _, u := range room.Users {
		if u.State == StateReadyForGameplay {
			u.State = StatePlaying
			room.broadcast("UserStateChanged", u.UserID, u.State)
		}
	}
	room.setState(RoomPlaying)
	room.broadcast("GameplayStarted", nil)
}

// SendMatchRequest lets a client ask the host to restart the match once
// it appears stuck (spec §4.3).
func (m *Manager) SendMatchRequest(userID uint) error {
	room, _, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if client, ok := m.h.ClientByUserID(room.HostID); ok {
		_ = client.CallNoBlock("MatchRequestReceived", userID)
	}
	return nil
}

// AbortGameplay moves the caller out of the current play without ending
// the match for anyone else (spec §4.3 "any playing state -> idle").
func (m *Manager) AbortGameplay(userID uint) error {
	room, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if !ru.State.IsPlaying() && ru.State != StatePlaying {
		return fmt.Errorf("user is not currently playing")
	}
	ru.State = StateIdle
	room.broadcast("UserStateChanged", userID, ru.State)

	m.maybeFinishItemLocked(room)
	return nil
}

// AbortMatch is host-only: it ends the whole item for every player
// immediately, as if every player had finished (spec §4.3).
func (m *Manager) AbortMatch(hostID uint) error {
	room, _, unlock, err := m.lockUserRoom(hostID)
	if err != nil {
		return err
	}
	defer unlock()

	if room.HostID != hostID {
		return fmt.Errorf("only the host may abort the match")
	}
	if room.State != RoomPlaying {
		return fmt.Errorf("room is not mid-match")
	}

	for _, u := range room.Users {
		if u.State.IsPlaying() {
			u.State = StateFinishedPlay
			room.broadcast("UserStateChanged", u.UserID, u.State)
		}
	}
	m.finishItemLocked(room)
	return nil
}

// maybeFinishItemLocked ends the item once no player is still mid-play.
func (m *Manager) maybeFinishItemLocked(room *Room) {
	if room.State != RoomPlaying {
		return
	}
	for _, u := range room.Users {
		if u.State.IsPlaying() {
			return
		}
	}
	m.finishItemLocked(room)
}

// finishItemLocked transitions finished players to results, advances the
// queue, and reopens the room for the next item.
func (m *Manager) finishItemLocked(room *Room) {
	for _, u := range room.Users {
		if u.State == StateFinishedPlay {
			u.State = StateResults
			room.broadcast("UserStateChanged", u.UserID, u.State)
		}
	}
	room.queue.finishCurrentItem(room)
	room.setState(RoomOpen)
	room.broadcast("ResultsReady", nil)

	if room.AutoStartDuration > 0 {
		room.startCountdown(CountdownMatchStart, false, room.AutoStartDuration, func() {
			room.mu.Lock()
			defer room.mu.Unlock()
			for _, u := range room.Users {
				if u.State == StateResults {
					u.State = StateIdle
				}
			}
		})
	}
}
