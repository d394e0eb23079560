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

// Package multiplayer implements the authoritative multiplayer room hub
// (spec §4.3): room lifecycle, per-user readiness states, playlist queue
// policies, match start sequencing, and countdowns.
package multiplayer

// UserState is the per-user readiness state machine. Ordering matters:
// values are compared to validate forward transitions.
type UserState int

const (
	StateIdle UserState = iota
	StateReady
	StateWaitingForLoad
	StateLoaded
	StateReadyForGameplay
	StatePlaying
	StateFinishedPlay
	StateResults
	StateSpectating
)

// IsPlaying reports whether s counts as actively mid-match.
func (s UserState) IsPlaying() bool {
	switch s {
	case StateWaitingForLoad, StateLoaded, StateReadyForGameplay, StatePlaying:
		return true
	default:
		return false
	}
}

// RoomState is the room-wide lifecycle state.
type RoomState int

const (
	RoomOpen RoomState = iota
	RoomWaitingForLoad
	RoomPlaying
	RoomClosed
)

// RoomType selects the match-type handler.
type RoomType int

const (
	RoomTypeHeadToHead RoomType = iota
	RoomTypeTeamVersus
	RoomTypePlaylists
)

// QueueMode selects the playlist queue policy.
type QueueMode int

const (
	QueueHostOnly QueueMode = iota
	QueueAllPlayers
	QueueRoundRobin
)

// CountdownKind names what a countdown's expiry continuation does.
type CountdownKind int

const (
	CountdownMatchStart CountdownKind = iota
	CountdownForceGameplayStart
	CountdownServerShutdown
)

// canTransition reports whether a user may move directly from `from` to
// `to`. Spectating is reachable from idle/ready/results always, and from
// any "is playing" state only while the room itself is mid-match (checked
// by the caller, ChangeUserState, which knows the room state).
func canTransition(from, to UserState) bool {
	if to == StateSpectating {
		switch from {
		case StateIdle, StateReady, StateResults:
			return true
		default:
			return from.IsPlaying()
		}
	}
	if from == StateSpectating {
		return to == StateIdle
	}
	// Server-managed transitions (ready/idle -> waiting-for-load ->
	// loaded -> ready-for-gameplay -> playing -> finished-play) are driven
	// by StartMatch, OnUserLoaded and the start-of-match sequence, not by
	// a direct client request. Besides spectating, ChangeUserState allows
	// idle <-> ready, any playing state -> idle, finished-play -> results
	// and results -> idle.
	switch {
	case from == StateIdle && to == StateReady:
		return true
	case from == StateReady && to == StateIdle:
		return true
	case from.IsPlaying() && to == StateIdle:
		return true // AbortGameplay
	case from == StateFinishedPlay && to == StateResults:
		return true
	case from == StateResults && to == StateIdle:
		return true
	default:
		return false
	}
}
