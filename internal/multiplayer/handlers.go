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
	"context"
	"fmt"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
)

// registerHandlers binds every spec §4.3 RPC to the hub's method table.
// The hub's connect/disconnect lifecycle is bound separately, by setting
// m on the hub's DeferredLifecycle in internal/cmd/root.go.
func (m *Manager) registerHandlers(h *hub.Hub) {
	h.Handle("CreateRoom", m.handleCreateRoom)
	h.Handle("JoinRoom", m.handleJoinRoom)
	h.Handle("JoinRoomWithPassword", m.handleJoinRoom)
	h.Handle("LeaveRoom", m.handleLeaveRoom)
	h.Handle("KickUser", m.handleKickUser)
	h.Handle("ChangeUserState", m.handleChangeUserState)
	h.Handle("ChangeBeatmapAvailability", m.handleChangeBeatmapAvailability)
	h.Handle("ChangeUserMods", m.handleChangeUserMods)
	h.Handle("ChangeUserStyle", m.handleChangeUserStyle)
	h.Handle("AddPlaylistItem", m.handleAddPlaylistItem)
	h.Handle("EditPlaylistItem", m.handleEditPlaylistItem)
	h.Handle("RemovePlaylistItem", m.handleRemovePlaylistItem)
	h.Handle("ChangeSettings", m.handleChangeSettings)
	h.Handle("StartMatch", m.handleStartMatch)
	h.Handle("UserLoaded", m.handleUserLoaded)
	h.Handle("SendMatchRequest", m.handleSendMatchRequest)
	h.Handle("AbortGameplay", m.handleAbortGameplay)
	h.Handle("AbortMatch", m.handleAbortMatch)
	h.Handle("InvitePlayer", m.handleInvitePlayer)
	h.Handle("ChangeTeam", m.handleChangeTeam)
}

// OnConnect satisfies hub.Lifecycle and does nothing. Room membership
// does not survive a reconnect: Hub.adopt reports the replaced client
// through OnDisconnect, which leaves the room.
func (m *Manager) OnConnect(context.Context, *hub.Client) {}

// OnDisconnect removes the disconnecting user from whatever room they
// were in, matching spec §4.3's "leaving the hub leaves any room".
func (m *Manager) OnDisconnect(client *hub.Client, _ string) {
	_ = m.LeaveRoom(client.UserID)
}

func argUint(args []any, i int) (uint, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch v := args[i].(type) {
	case uint:
		return v, nil
	case int:
		return uint(v), nil
	case int64:
		return uint(v), nil
	case float64:
		return uint(v), nil
	default:
		return 0, fmt.Errorf("argument %d is not a number: %T", i, args[i])
	}
}

func argUint64(args []any, i int) (uint64, error) {
	v, err := argUint(args, i)
	return uint64(v), err
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d is not a string: %T", i, args[i])
	}
	return s, nil
}

func argBool(args []any, i int) (bool, error) {
	if i >= len(args) {
		return false, fmt.Errorf("missing argument %d", i)
	}
	b, ok := args[i].(bool)
	if !ok {
		return false, fmt.Errorf("argument %d is not a bool: %T", i, args[i])
	}
	return b, nil
}

func argStringSlice(args []any, i int) ([]string, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument %d", i)
	}
	raw, ok := args[i].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %d is not an array: %T", i, args[i])
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %d contains a non-string element: %T", i, v)
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Manager) handleCreateRoom(_ context.Context, client *hub.Client, args []any) (any, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	roomType, err := argUint(args, 1)
	if err != nil {
		return nil, err
	}
	queueMode, err := argUint(args, 2)
	if err != nil {
		return nil, err
	}
	password, err := argString(args, 3)
	if err != nil {
		return nil, err
	}
	beatmapID, err := argUint64(args, 4)
	if err != nil {
		return nil, err
	}
	ruleset, err := argUint(args, 5)
	if err != nil {
		return nil, err
	}
	return m.CreateRoom(client.UserID, name, RoomType(roomType), QueueMode(queueMode), password, beatmapID, models.Ruleset(ruleset))
}

func (m *Manager) handleJoinRoom(_ context.Context, client *hub.Client, args []any) (any, error) {
	roomID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	var password string
	if len(args) > 1 {
		password, _ = argString(args, 1)
	}
	return m.JoinRoom(client.UserID, roomID, password)
}

func (m *Manager) handleLeaveRoom(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.LeaveRoom(client.UserID)
}

func (m *Manager) handleKickUser(_ context.Context, client *hub.Client, args []any) (any, error) {
	target, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, m.KickUser(client.UserID, target)
}

func (m *Manager) handleChangeUserState(_ context.Context, client *hub.Client, args []any) (any, error) {
	to, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, m.ChangeUserState(client.UserID, UserState(to))
}

func (m *Manager) handleChangeBeatmapAvailability(_ context.Context, client *hub.Client, args []any) (any, error) {
	state, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	var progress float64
	if len(args) > 1 {
		if f, ok := args[1].(float64); ok {
			progress = f
		}
	}
	return nil, m.ChangeBeatmapAvailability(client.UserID, state, progress)
}

func (m *Manager) handleChangeUserMods(_ context.Context, client *hub.Client, args []any) (any, error) {
	mods, err := argStringSlice(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, m.ChangeUserMods(client.UserID, mods)
}

func (m *Manager) handleChangeUserStyle(_ context.Context, client *hub.Client, args []any) (any, error) {
	beatmapID, err := argUint64(args, 0)
	if err != nil {
		return nil, err
	}
	ruleset, err := argUint(args, 1)
	if err != nil {
		return nil, err
	}
	return nil, m.ChangeUserStyle(client.UserID, beatmapID, models.Ruleset(ruleset))
}

func (m *Manager) handleAddPlaylistItem(_ context.Context, client *hub.Client, args []any) (any, error) {
	beatmapID, err := argUint64(args, 0)
	if err != nil {
		return nil, err
	}
	ruleset, err := argUint(args, 1)
	if err != nil {
		return nil, err
	}
	var mods []string
	if len(args) > 2 {
		mods, _ = argStringSlice(args, 2)
	}
	return nil, m.AddPlaylistItem(client.UserID, beatmapID, models.Ruleset(ruleset), mods)
}

func (m *Manager) handleEditPlaylistItem(_ context.Context, client *hub.Client, args []any) (any, error) {
	itemID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	beatmapID, err := argUint64(args, 1)
	if err != nil {
		return nil, err
	}
	ruleset, err := argUint(args, 2)
	if err != nil {
		return nil, err
	}
	var mods []string
	if len(args) > 3 {
		mods, _ = argStringSlice(args, 3)
	}
	return nil, m.EditPlaylistItem(client.UserID, itemID, func(item *models.PlaylistItem) {
		item.BeatmapID = uint(beatmapID)
		item.RulesetID = models.Ruleset(ruleset)
		if mods != nil {
			item.Mods = mods
		}
	})
}

func (m *Manager) handleRemovePlaylistItem(_ context.Context, client *hub.Client, args []any) (any, error) {
	itemID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	return nil, m.RemovePlaylistItem(client.UserID, itemID)
}

func (m *Manager) handleChangeSettings(_ context.Context, client *hub.Client, args []any) (any, error) {
	name, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	roomType, err := argUint(args, 1)
	if err != nil {
		return nil, err
	}
	queueMode, err := argUint(args, 2)
	if err != nil {
		return nil, err
	}
	return nil, m.ChangeSettings(client.UserID, name, RoomType(roomType), QueueMode(queueMode))
}

func (m *Manager) handleStartMatch(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.StartMatch(client.UserID)
}

func (m *Manager) handleUserLoaded(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.OnUserLoaded(client.UserID)
}

func (m *Manager) handleSendMatchRequest(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.SendMatchRequest(client.UserID)
}

func (m *Manager) handleAbortGameplay(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.AbortGameplay(client.UserID)
}

func (m *Manager) handleAbortMatch(_ context.Context, client *hub.Client, _ []any) (any, error) {
	return nil, m.AbortMatch(client.UserID)
}

func (m *Manager) handleInvitePlayer(_ context.Context, client *hub.Client, args []any) (any, error) {
	target, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	pmFriendsOnly, _ := argBool(args, 1)
	isFriend := models.AreFriends(m.db, target, client.UserID)
	isBlocked := models.IsBlocked(m.db, client.UserID, target)
	return nil, m.InvitePlayer(client.UserID, target, pmFriendsOnly, isFriend, isBlocked)
}

func (m *Manager) handleChangeTeam(_ context.Context, client *hub.Client, args []any) (any, error) {
	team, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	room, _, unlock, err := m.lockUserRoom(client.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return nil, room.matchType.changeTeam(room, client.UserID, int(team))
}
