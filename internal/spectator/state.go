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

// Package spectator implements the frame-bundle fan-out and replay
// assembly hub (spec §4.4): watchers receive a played frame stream live,
// and once the server-side score is committed the buffered frames are
// serialized to an .osr-style replay and attached to it.
package spectator

import "github.com/USA-RedDragon/DMRHub/internal/db/models"

// PlayState is the caller's reported play-session phase.
type PlayState string

const (
	PlayStateIdle     PlayState = "idle"
	PlayStatePlaying  PlayState = "playing"
	PlayStatePaused   PlayState = "paused"
	PlayStateBreak    PlayState = "break"
	PlayStateFinished PlayState = "finished"
)

// SpectatorState is the per-client state reported at BeginPlaySession and
// again at EndPlaySession; frame bundles do not change it.
type SpectatorState struct {
	BeatmapID  uint             `json:"beatmap_id"`
	RulesetID  models.Ruleset   `json:"ruleset_id"`
	Mods       []string         `json:"mods"`
	State      PlayState        `json:"state"`
	MaxStatistics map[string]int `json:"maximum_statistics,omitempty"`
}

// ScoreInfo is the running score header updated as frame bundles arrive,
// and the payload LZMA-compressed into the replay's score-info trailer.
type ScoreInfo struct {
	Accuracy   float64        `json:"accuracy"`
	Combo      int            `json:"combo"`
	MaxCombo   int            `json:"max_combo"`
	Statistics map[string]int `json:"statistics"`
	TotalScore uint64         `json:"total_score"`
	Mods       []string       `json:"mods"`
}

// ReplayFrame is one legacy-format input sample: t_delta since the
// previous frame, cursor position, and the button bitmask.
type ReplayFrame struct {
	TimeDelta int32 `json:"time_delta"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Buttons   int32   `json:"buttons"`
}

// FrameBundle is one SendFrameData payload: a batch of frames plus the
// header fields scorable at the time they were captured.
type FrameBundle struct {
	Frames []ReplayFrame `json:"frames"`
	Header *ScoreInfo    `json:"header,omitempty"`
}

// session is the hub's authoritative per-playing-client record. It is
// removed from the service at EndPlaySession or on disconnect; score
// reconciliation keeps its own reference until it finishes or gives up.
type session struct {
	userID     uint
	scoreToken uint
	state      SpectatorState
	header     ScoreInfo
	frames     []ReplayFrame
	scorableHit bool
}

func (s *session) applyBundle(b FrameBundle) {
	s.frames = append(s.frames, b.Frames...)
	if len(b.Frames) > 0 {
		s.scorableHit = true
	}
	if b.Header != nil {
		s.header = *b.Header
	}
}
