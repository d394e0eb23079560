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

// White-box so the tests can exercise decodeActivity, which the hub's
// wire-decoded map[string]any argument path depends on but which has no
// reason to be exported.
package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresencePushable(t *testing.T) {
	t.Parallel()

	assert.False(t, Presence{Status: StatusOffline}.Pushable())
	assert.True(t, Presence{Status: StatusOnline}.Pushable())
	assert.True(t, Presence{Status: StatusDoNotDisturb}.Pushable())
}

func TestDecodeActivityValid(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"type":    "in_multiplayer_lobby",
		"details": map[string]any{"room_id": float64(5)},
	}
	a := decodeActivity(raw)
	if assert.NotNil(t, a) {
		assert.Equal(t, ActivityInMultiplayerLobby, a.Type)
		assert.Equal(t, float64(5), a.Details["room_id"])
	}
}

func TestDecodeActivityWrongShape(t *testing.T) {
	t.Parallel()
	assert.Nil(t, decodeActivity("not a map"))
	assert.Nil(t, decodeActivity(nil))
}

func TestDecodeActivityMissingDetails(t *testing.T) {
	t.Parallel()
	a := decodeActivity(map[string]any{"type": "editing"})
	if assert.NotNil(t, a) {
		assert.Equal(t, ActivityEditing, a.Type)
		assert.Nil(t, a.Details)
	}
}
