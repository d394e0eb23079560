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

package spectator

import (
	"fmt"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
)

func toUint(v any) uint {
	switch n := v.(type) {
	case uint:
		return n
	case int:
		return uint(n)
	case int64:
		return uint(n)
	case float64:
		return uint(n)
	default:
		return 0
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case uint:
		return int(n)
	default:
		return 0
	}
}

func argUint(args []any, i int) (uint, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	return toUint(args[i]), nil
}

func decodeState(args []any, idx int) (SpectatorState, error) {
	if idx >= len(args) {
		return SpectatorState{}, fmt.Errorf("missing argument %d", idx)
	}
	m, ok := args[idx].(map[string]any)
	if !ok {
		return SpectatorState{}, fmt.Errorf("argument %d is not an object: %T", idx, args[idx])
	}
	var state SpectatorState
	if v, ok := m["beatmap_id"]; ok {
		state.BeatmapID = toUint(v)
	}
	if v, ok := m["ruleset_id"]; ok {
		state.RulesetID = models.Ruleset(toUint(v))
	}
	if v, ok := m["mods"].([]any); ok {
		for _, mod := range v {
			if s, ok := mod.(string); ok {
				state.Mods = append(state.Mods, s)
			}
		}
	}
	if v, ok := m["state"].(string); ok {
		state.State = PlayState(v)
	}
	if v, ok := m["maximum_statistics"].(map[string]any); ok {
		state.MaxStatistics = make(map[string]int, len(v))
		for k, val := range v {
			state.MaxStatistics[k] = toInt(val)
		}
	}
	return state, nil
}

func decodeScoreInfo(m map[string]any) *ScoreInfo {
	info := &ScoreInfo{}
	if v, ok := m["accuracy"].(float64); ok {
		info.Accuracy = v
	}
	if v, ok := m["combo"]; ok {
		info.Combo = toInt(v)
	}
	if v, ok := m["max_combo"]; ok {
		info.MaxCombo = toInt(v)
	}
	if v, ok := m["total_score"]; ok {
		info.TotalScore = uint64(toInt(v))
	}
	if v, ok := m["mods"].([]any); ok {
		for _, mod := range v {
			if s, ok := mod.(string); ok {
				info.Mods = append(info.Mods, s)
			}
		}
	}
	if v, ok := m["statistics"].(map[string]any); ok {
		info.Statistics = make(map[string]int, len(v))
		for k, val := range v {
			info.Statistics[k] = toInt(val)
		}
	}
	return info
}

func float32ValueOf(v any) float32 {
	switch n := v.(type) {
	case float64:
		return float32(n)
	case float32:
		return n
	case int:
		return float32(n)
	default:
		return 0
	}
}

func decodeBundle(args []any, idx int) (FrameBundle, error) {
	if idx >= len(args) {
		return FrameBundle{}, fmt.Errorf("missing argument %d", idx)
	}
	m, ok := args[idx].(map[string]any)
	if !ok {
		return FrameBundle{}, fmt.Errorf("argument %d is not an object: %T", idx, args[idx])
	}
	var bundle FrameBundle
	if frames, ok := m["frames"].([]any); ok {
		for _, f := range frames {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			bundle.Frames = append(bundle.Frames, ReplayFrame{
				TimeDelta: int32(toInt(fm["time_delta"])),
				X:         float32ValueOf(fm["x"]),
				Y:         float32ValueOf(fm["y"]),
				Buttons:   int32(toInt(fm["buttons"])),
			})
		}
	}
	if h, ok := m["header"].(map[string]any); ok {
		bundle.Header = decodeScoreInfo(h)
	}
	return bundle, nil
}
