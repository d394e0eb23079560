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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/USA-RedDragon/DMRHub/internal/pubsub"
	"gorm.io/gorm"
)

// RoomMembershipTopicJoined and RoomMembershipTopicLeft are the pubsub
// topics the chat package subscribes to in order to keep a room's
// auto-managed chat channel membership in sync (spec §4.6 "multiplayer,
// spectator: auto-managed by the corresponding hub via Redis pub/sub").
const (
	RoomMembershipTopicJoined = "chat:room:joined"
	RoomMembershipTopicLeft   = "chat:room:left"
)

// RoomMembershipEvent is the payload published on the topics above.
type RoomMembershipEvent struct {
	ChannelID uint `json:"channel_id"`
	UserID    uint `json:"user_id"`
}

// Manager owns every live room and the reverse index of which room each
// user currently occupies, matching spec §4.3's "callable only when caller
// has no room" invariant.
type Manager struct {
	db  *gorm.DB
	cfg *config.Config
	h   *hub.Hub
	ps  pubsub.PubSub

	mu         sync.Mutex
	rooms      map[uint]*Room
	userRoom   map[uint]uint
	nextRoomID uint
	nextItemID uint
}

// NewManager builds a Manager and registers every RPC as a hub method.
func NewManager(db *gorm.DB, cfg *config.Config, h *hub.Hub, ps pubsub.PubSub) *Manager {
	m := &Manager{
		db:       db,
		cfg:      cfg,
		h:        h,
		ps:       ps,
		rooms:    make(map[uint]*Room),
		userRoom: make(map[uint]uint),
	}
	m.registerHandlers(h)
	return m
}

func (m *Manager) publishMembership(topic string, channelID, userID uint) {
	if m.ps == nil || channelID == 0 {
		return
	}
	payload, err := json.Marshal(RoomMembershipEvent{ChannelID: channelID, UserID: userID})
	if err != nil {
		return
	}
	if err := m.ps.Publish(topic, payload); err != nil {
		slog.Warn("multiplayer: failed to publish room membership event", "topic", topic, "error", err)
	}
}

func (m *Manager) roomGroup(roomID uint) string {
	return fmt.Sprintf("room:%d", roomID)
}

func (m *Manager) broadcastFor(roomID uint) func(string, any) {
	return func(event string, payload any) {
		m.h.Broadcast(m.roomGroup(roomID), event, payload)
	}
}

// CreateRoom persists a new Room, seeds its first playlist item, and
// auto-joins the caller as host (spec §4.3 CreateRoom).
func (m *Manager) CreateRoom(userID uint, name string, roomType RoomType, queueMode QueueMode, password string, firstBeatmapID uint64, ruleset models.Ruleset) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.userRoom[userID]; ok {
		return nil, fmt.Errorf("caller is already in a room")
	}

	m.nextRoomID++
	roomID := m.nextRoomID

	persisted := models.Room{
		ID:                roomID,
		Name:              name,
		HostID:            userID,
		Type:              roomTypeName(roomType),
		QueueMode:         queueModeName(queueMode),
		HasPassword:       password != "",
		CreatedAt:         time.Now(),
	}
	if err := models.CreateRoom(m.db, &persisted); err != nil {
		return nil, fmt.Errorf("failed to persist room: %w", err)
	}

	room := newRoom(roomID, userID, name, roomType, queueMode, m.broadcastFor(roomID))
	room.Password = password

	channel := models.ChatChannel{
		Name:      fmt.Sprintf("#mp_%d", roomID),
		Type:      "multiplayer",
		CreatedAt: time.Now(),
	}
	if err := m.db.Create(&channel).Error; err != nil {
		return nil, fmt.Errorf("failed to create room chat channel: %w", err)
	}
	room.ChannelID = channel.ID

	m.nextItemID++
	item := &models.PlaylistItem{
		ID:        m.nextItemID,
		RoomID:    roomID,
		OwnerID:   userID,
		BeatmapID: uint(firstBeatmapID),
		RulesetID: ruleset,
		CreatedAt: time.Now(),
	}
	if err := models.AppendPlaylistItem(m.db, item); err != nil {
		return nil, fmt.Errorf("failed to persist first playlist item: %w", err)
	}
	appendItem(room, item)
	room.CurrentItemIdx = 0

	m.rooms[roomID] = room
	m.joinLocked(room, userID)

	return room, nil
}

func roomTypeName(t RoomType) string {
	if t == RoomTypeTeamVersus {
		return "team-versus"
	}
	if t == RoomTypePlaylists {
		return "playlists"
	}
	return "head-to-head"
}

func queueModeName(q QueueMode) string {
	switch q {
	case QueueAllPlayers:
		return "all-players"
	case QueueRoundRobin:
		return "round-robin"
	default:
		return "host-only"
	}
}

// JoinRoom validates then joins userID into roomID, sending catch-up state
// to the newcomer and broadcasting UserJoined to the rest (spec §4.3).
func (m *Manager) JoinRoom(userID, roomID uint, password string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.userRoom[userID]; ok {
		return nil, fmt.Errorf("caller is already in a room")
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %d not found", roomID)
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Password != "" && room.Password != password {
		return nil, fmt.Errorf("incorrect password")
	}
	if room.userByID(userID) != nil {
		return nil, fmt.Errorf("user already in room")
	}

	m.joinLocked(room, userID)
	return room, nil
}

// joinLocked assumes m.mu and room.mu (when room already existed) are held.
func (m *Manager) joinLocked(room *Room, userID uint) {
	room.Users = append(room.Users, &RoomUser{UserID: userID, State: StateIdle})
	m.userRoom[userID] = room.ID
	room.matchType.onUserJoined(room, userID)
	room.broadcast("UserJoined", userID)
	m.publishMembership(RoomMembershipTopicJoined, room.ChannelID, userID)
	m.sendCatchUp(room, userID)
}

// sendCatchUp replays the current room/match state to a newly joined user
// (spec §4.3 "Catch-up for late joiners").
func (m *Manager) sendCatchUp(room *Room, userID uint) {
	client, ok := m.h.ClientByUserID(userID)
	if !ok {
		return
	}
	_ = client.CallNoBlock("RoomStateChanged", room.State)
	if room.State == RoomWaitingForLoad || room.State == RoomPlaying {
		_ = client.CallNoBlock("LoadRequested")
	}
	for _, u := range room.Users {
		if u.UserID == userID {
			continue
		}
		_ = client.CallNoBlock("UserStateChanged", u.UserID, u.State)
	}
	if room.State == RoomOpen {
		allResults := len(room.Users) > 0
		for _, u := range room.Users {
			if u.State != StateResults {
				allResults = false
				break
			}
		}
		if allResults {
			_ = client.CallNoBlock("ResultsReady")
		}
	}
}

// LeaveRoom removes userID from its current room, transferring host and
// closing the room if it becomes empty (spec §4.3).
func (m *Manager) LeaveRoom(userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.userRoom[userID]
	if !ok {
		return fmt.Errorf("caller is not in a room")
	}
	room := m.rooms[roomID]
	room.mu.Lock()
	defer room.mu.Unlock()

	m.leaveLocked(room, userID)
	return nil
}

func (m *Manager) leaveLocked(room *Room, userID uint) {
	room.removeUser(userID)
	room.matchType.onUserLeft(room, userID)
	delete(m.userRoom, userID)
	room.broadcast("UserLeft", userID)
	m.publishMembership(RoomMembershipTopicLeft, room.ChannelID, userID)

	if len(room.Users) == 0 {
		m.closeLocked(room)
		return
	}
	if room.HostID == userID {
		room.HostID = room.Users[0].UserID
		room.broadcast("HostChanged", room.HostID)
	}
}

func (m *Manager) closeLocked(room *Room) {
	room.stopAllCountdowns()
	room.State = RoomClosed
	delete(m.rooms, room.ID)
	if err := models.CloseRoom(m.db, room.ID); err != nil {
		_ = err // best-effort; in-memory state is already torn down
	}
}

// KickUser is host-only and otherwise identical to the kicked user
// leaving, plus a direct UserKicked notice (spec §4.3).
func (m *Manager) KickUser(hostID, targetID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.userRoom[hostID]
	if !ok {
		return fmt.Errorf("caller is not in a room")
	}
	room := m.rooms[roomID]
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.HostID != hostID {
		return fmt.Errorf("only the host may kick users")
	}
	if room.userByID(targetID) == nil {
		return fmt.Errorf("user %d is not in this room", targetID)
	}

	if client, ok := m.h.ClientByUserID(targetID); ok {
		_ = client.CallNoBlock("UserKicked")
	}
	m.leaveLocked(room, targetID)
	return nil
}

// ChangeUserState validates a client-initiated transition against the
// allowed graph (spec §4.3 "Per-user states").
func (m *Manager) ChangeUserState(userID uint, to UserState) error {
	room, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if !canTransition(ru.State, to) {
		return fmt.Errorf("invalid state transition %v -> %v", ru.State, to)
	}
	if to == StateSpectating && ru.State.IsPlaying() && room.State != RoomWaitingForLoad && room.State != RoomPlaying {
		return fmt.Errorf("cannot spectate from a playing state while the room is not mid-match")
	}
	ru.State = to
	room.broadcast("UserStateChanged", userID, to)
	return nil
}

func (m *Manager) lockUserRoom(userID uint) (*Room, *RoomUser, func(), error) {
	m.mu.Lock()
	roomID, ok := m.userRoom[userID]
	if !ok {
		m.mu.Unlock()
		return nil, nil, nil, fmt.Errorf("caller is not in a room")
	}
	room := m.rooms[roomID]
	m.mu.Unlock()

	room.mu.Lock()
	ru := room.userByID(userID)
	if ru == nil {
		room.mu.Unlock()
		return nil, nil, nil, fmt.Errorf("caller is not in this room")
	}
	return room, ru, room.mu.Unlock, nil
}

// ChangeUserMods projects any mod outside the current item's allowed set
// rather than rejecting the call outright (spec §4.3).
func (m *Manager) ChangeUserMods(userID uint, mods []string) error {
	room, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	item := room.currentItem()
	if item != nil {
		mods = projectMods(mods, item.Mods)
	}
	ru.Mods = mods
	room.broadcast("UserModsChanged", userID, mods)
	return nil
}

// projectMods drops any mod not present in allowed, unless allowed is
// empty (meaning "anything goes" for a freestyle item).
func projectMods(requested, allowed []string) []string {
	if len(allowed) == 0 {
		return requested
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowSet[a] = struct{}{}
	}
	out := requested[:0:0]
	for _, r := range requested {
		if _, ok := allowSet[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ChangeUserStyle sets a freestyle beatmap/ruleset override for userID.
func (m *Manager) ChangeUserStyle(userID uint, beatmapID uint64, ruleset models.Ruleset) error {
	_, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()
	ru.BeatmapID = &beatmapID
	ru.RulesetID = &ruleset
	return nil
}

// ChangeBeatmapAvailability records a user's local download/import
// progress so the host can see who is ready to load.
func (m *Manager) ChangeBeatmapAvailability(userID uint, state string, progress float64) error {
	room, ru, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()
	ru.AvailabilityState = state
	ru.AvailabilityPct = progress
	room.broadcast("UserBeatmapAvailabilityChanged", userID, state, progress)
	return nil
}

// AddPlaylistItem delegates to the room's queue policy.
func (m *Manager) AddPlaylistItem(userID uint, beatmapID uint64, ruleset models.Ruleset, mods []string) error {
	room, _, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := room.queue.canAdd(userID, room); err != nil {
		return err
	}
	m.mu.Lock()
	m.nextItemID++
	id := m.nextItemID
	m.mu.Unlock()

	item := &models.PlaylistItem{
		ID:        id,
		RoomID:    room.ID,
		OwnerID:   userID,
		BeatmapID: uint(beatmapID),
		RulesetID: ruleset,
		Mods:      mods,
		CreatedAt: time.Now(),
	}
	if err := models.AppendPlaylistItem(m.db, item); err != nil {
		return fmt.Errorf("failed to persist playlist item: %w", err)
	}
	return room.queue.addItem(room, item)
}

func (m *Manager) EditPlaylistItem(userID, itemID uint, mutate func(*models.PlaylistItem)) error {
	room, _, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()
	return room.queue.editItem(room, itemID, mutate)
}

func (m *Manager) RemovePlaylistItem(userID, itemID uint) error {
	room, _, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()
	return room.queue.removeItem(room, itemID)
}

// ChangeSettings is host-only and blocked while the room is mid-match
// (spec §4.3).
func (m *Manager) ChangeSettings(userID uint, name string, roomType RoomType, queueMode QueueMode) error {
	room, _, unlock, err := m.lockUserRoom(userID)
	if err != nil {
		return err
	}
	defer unlock()

	if room.HostID != userID {
		return fmt.Errorf("only the host may change settings")
	}
	if room.State != RoomOpen {
		return fmt.Errorf("cannot change settings while room is not open")
	}

	room.Name = name
	if roomType != room.Type {
		room.Type = roomType
		room.matchType = newMatchTypeHandler(roomType)
	}
	if queueMode != room.QueueMode {
		room.QueueMode = queueMode
		room.queue = newQueuePolicy(queueMode, room)
	}
	for _, u := range room.Users {
		if u.State == StateReady {
			u.State = StateIdle
		}
	}
	room.broadcast("SettingsChanged", room.Name, room.Type, room.QueueMode)
	return nil
}

// InvitePlayer notifies target of an invite, after a block/friend check.
func (m *Manager) InvitePlayer(hostID, targetID uint, pmFriendsOnly bool, isFriend, isBlocked bool) error {
	room, _, unlock, err := m.lockUserRoom(hostID)
	if err != nil {
		return err
	}
	defer unlock()

	if isBlocked {
		return fmt.Errorf("cannot invite a blocked user")
	}
	if pmFriendsOnly && !isFriend {
		return fmt.Errorf("target only accepts invites from friends")
	}
	if client, ok := m.h.ClientByUserID(targetID); ok {
		_ = client.CallNoBlock("Invited", hostID, room.ID, room.Password != "")
	}
	return nil
}
