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

// Package metadata implements the presence/activity hub (spec §4.5):
// status and activity propagate to a global watcher group and to each
// friend's dedicated watcher group, and last_visit is stamped on
// disconnect.
package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"gorm.io/gorm"
)

const globalWatchGroup = "presence:global"

func friendWatchGroup(userID uint) string {
	return fmt.Sprintf("presence:friend:%d", userID)
}

// Service is the metadata hub's Lifecycle and method dispatch target. It
// keeps the authoritative in-memory presence map: presence is a live,
// connection-scoped concept, never durably stored beyond last_visit.
type Service struct {
	db *gorm.DB
	h  *hub.Hub

	mu       sync.Mutex
	presence map[uint]*Presence
}

func NewService(db *gorm.DB, h *hub.Hub) *Service {
	s := &Service{db: db, h: h, presence: make(map[uint]*Presence)}
	h.Handle("UpdateStatus", s.handleUpdateStatus)
	h.Handle("UpdateActivity", s.handleUpdateActivity)
	h.Handle("BeginWatchingUserPresence", s.handleBeginWatching)
	h.Handle("EndWatchingUserPresence", s.handleEndWatching)
	return s
}

func (s *Service) OnConnect(context.Context, *hub.Client) {}

// OnDisconnect stamps last_visit and clears the disconnecting user's
// presence, broadcasting the clearing null to its watchers.
func (s *Service) OnDisconnect(client *hub.Client, _ string) {
	_ = s.db.Model(&models.User{}).Where("id = ?", client.UserID).
		Update("last_visit", time.Now()).Error

	s.mu.Lock()
	delete(s.presence, client.UserID)
	s.mu.Unlock()
	s.broadcastPresence(client.UserID, nil)
}

func (s *Service) currentOrNew(userID uint) *Presence {
	p, ok := s.presence[userID]
	if !ok {
		p = &Presence{UserID: userID, Status: StatusOffline}
		s.presence[userID] = p
	}
	return p
}

func (s *Service) handleUpdateStatus(_ context.Context, client *hub.Client, args []any) (any, error) {
	status, err := argInt(args, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	p := s.currentOrNew(client.UserID)
	p.Status = Status(status)
	snapshot := *p
	s.mu.Unlock()

	s.pushOrClear(client.UserID, snapshot)
	return nil, nil
}

func (s *Service) handleUpdateActivity(_ context.Context, client *hub.Client, args []any) (any, error) {
	var activity *Activity
	if len(args) > 0 && args[0] != nil {
		activity = decodeActivity(args[0])
	}

	s.mu.Lock()
	p := s.currentOrNew(client.UserID)
	p.Activity = activity
	snapshot := *p
	s.mu.Unlock()

	s.pushOrClear(client.UserID, snapshot)
	return nil, nil
}

// handleBeginWatching joins the caller to the global watcher group and
// every one of its friends' dedicated groups, then replays every
// currently pushable user's state (spec §4.5 "sends every currently
// pushable user's state, then subscribes").
func (s *Service) handleBeginWatching(_ context.Context, client *hub.Client, _ []any) (any, error) {
	s.h.JoinGroup(globalWatchGroup, client)

	friends, err := models.Friends(s.db, client.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve friends: %w", err)
	}
	for _, friendID := range friends {
		s.h.JoinGroup(friendWatchGroup(friendID), client)
	}

	s.mu.Lock()
	snapshot := make([]Presence, 0, len(s.presence))
	for _, p := range s.presence {
		if p.Pushable() {
			snapshot = append(snapshot, *p)
		}
	}
	s.mu.Unlock()

	for i := range snapshot {
		if err := client.CallNoBlock("metadata.presence.update", snapshot[i].UserID, &snapshot[i]); err != nil {
			break
		}
	}
	return nil, nil
}

func (s *Service) handleEndWatching(_ context.Context, client *hub.Client, _ []any) (any, error) {
	s.h.LeaveGroup(globalWatchGroup, client)

	friends, err := models.Friends(s.db, client.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve friends: %w", err)
	}
	for _, friendID := range friends {
		s.h.LeaveGroup(friendWatchGroup(friendID), client)
	}
	return nil, nil
}

func (s *Service) pushOrClear(userID uint, p Presence) {
	if p.Pushable() {
		s.broadcastPresence(userID, &p)
		return
	}
	s.broadcastPresence(userID, nil)
}

func (s *Service) broadcastPresence(userID uint, p *Presence) {
	s.h.Broadcast(globalWatchGroup, "metadata.presence.update", userID, p)
	s.h.Broadcast(friendWatchGroup(userID), "metadata.presence.update", userID, p)
}

func argInt(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %d is not a number: %T", i, args[i])
	}
}
