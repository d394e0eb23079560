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

package metadata

// ActivityType enumerates the ≈14 tagged-union variants spec §4.5 names.
// The hub never interprets a variant's Details, only relays it, so new
// variants never require a hub change.
type ActivityType string

const (
	ActivityChoosingBeatmap       ActivityType = "choosing_beatmap"
	ActivitySearchingBeatmap      ActivityType = "searching_beatmap"
	ActivityInSoloGame            ActivityType = "in_solo_game"
	ActivityInMultiplayerLobby    ActivityType = "in_multiplayer_lobby"
	ActivityInMultiplayerGame     ActivityType = "in_multiplayer_game"
	ActivitySpectating            ActivityType = "spectating"
	ActivityEditing               ActivityType = "editing"
	ActivityTesting               ActivityType = "testing"
	ActivityModding               ActivityType = "modding"
	ActivityInLobby               ActivityType = "in_lobby"
	ActivityInDailyChallengeLobby ActivityType = "in_daily_challenge_lobby"
	ActivityPlayingDailyChallenge ActivityType = "playing_daily_challenge"
	ActivityWatchingReplay        ActivityType = "watching_replay"
	ActivityChoosingAvatar        ActivityType = "choosing_avatar"
)

// Activity is the payload a client pushes via UpdateActivity. Details
// carries whatever variant-specific fields the client sent (beatmap id,
// room id, ...), opaque to the hub.
type Activity struct {
	Type    ActivityType   `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

func decodeActivity(v any) *Activity {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	a := &Activity{}
	if t, ok := m["type"].(string); ok {
		a.Type = ActivityType(t)
	}
	if d, ok := m["details"].(map[string]any); ok {
		a.Details = d
	}
	return a
}

// Status is the coarse online state spec §4.5 names.
type Status int

const (
	StatusOffline       Status = 0
	StatusDoNotDisturb  Status = 1
	StatusOnline        Status = 2
)

// Presence is one user's current status/activity pair, broadcast to
// watchers on every change.
type Presence struct {
	UserID   uint      `json:"user_id"`
	Status   Status    `json:"status"`
	Activity *Activity `json:"activity,omitempty"`
}

// Pushable implements spec §4.5's "pushable iff status != null && status
// != offline" rule; a Presence only exists once UpdateStatus has been
// called at least once, so the null case is the absence of an entry.
func (p Presence) Pushable() bool {
	return p.Status != StatusOffline
}
