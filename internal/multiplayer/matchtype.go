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

import "fmt"

// matchTypeHandler encapsulates per-mode user state (spec §4.3
// "Match-type handlers"): head-to-head is stateless, team-versus assigns
// team ids and handles team-change requests.
type matchTypeHandler interface {
	onUserJoined(r *Room, userID uint)
	onUserLeft(r *Room, userID uint)
	changeTeam(r *Room, userID uint, team int) error
}

func newMatchTypeHandler(t RoomType) matchTypeHandler {
	if t == RoomTypeTeamVersus {
		return &teamVersusHandler{teams: make(map[uint]int)}
	}
	return headToHeadHandler{}
}

type headToHeadHandler struct{}

func (headToHeadHandler) onUserJoined(*Room, uint)          {}
func (headToHeadHandler) onUserLeft(*Room, uint)            {}
func (headToHeadHandler) changeTeam(*Room, uint, int) error { return fmt.Errorf("room is not team-versus") }

// teamVersusHandler assigns each joining user to whichever of the two
// teams has fewer members, keeping teams balanced by default.
type teamVersusHandler struct {
	teams map[uint]int
}

const teamCount = 2

func (h *teamVersusHandler) onUserJoined(r *Room, userID uint) {
	counts := make([]int, teamCount)
	for _, team := range h.teams {
		counts[team]++
	}
	smallest := 0
	for i, c := range counts {
		if c < counts[smallest] {
			smallest = i
		}
	}
	h.teams[userID] = smallest
	r.broadcast("UserTeamChanged", teamChange{UserID: userID, Team: smallest})
}

func (h *teamVersusHandler) onUserLeft(_ *Room, userID uint) {
	delete(h.teams, userID)
}

func (h *teamVersusHandler) changeTeam(r *Room, userID uint, team int) error {
	if team < 0 || team >= teamCount {
		return fmt.Errorf("invalid team %d", team)
	}
	h.teams[userID] = team
	r.broadcast("UserTeamChanged", teamChange{UserID: userID, Team: team})
	return nil
}

type teamChange struct {
	UserID uint
	Team   int
}
