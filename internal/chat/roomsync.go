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

package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/USA-RedDragon/DMRHub/internal/multiplayer"
	"github.com/USA-RedDragon/DMRHub/internal/pubsub"
)

// RunRoomMembershipSync subscribes to the multiplayer/spectator hubs'
// room-membership pubsub topics and mirrors them into chat channel
// membership, grounded on the teacher's subscription-manager goroutine
// pattern (spec §4.6 "auto-managed ... via Redis pub/sub"). It blocks
// until ctx is canceled.
func (s *Service) RunRoomMembershipSync(ctx context.Context, ps pubsub.PubSub) {
	joined := ps.Subscribe(multiplayer.RoomMembershipTopicJoined)
	left := ps.Subscribe(multiplayer.RoomMembershipTopicLeft)
	defer joined.Close()
	defer left.Close()

	logger := slog.With("component", "chat-room-sync")
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-joined.Channel():
			if !ok {
				return
			}
			s.handleRoomEvent(logger, payload, true)
		case payload, ok := <-left.Channel():
			if !ok {
				return
			}
			s.handleRoomEvent(logger, payload, false)
		}
	}
}

func (s *Service) handleRoomEvent(logger *slog.Logger, payload []byte, joined bool) {
	var event multiplayer.RoomMembershipEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logger.Warn("failed to decode room membership event", "error", err)
		return
	}
	var err error
	if joined {
		err = s.JoinChannel(event.UserID, event.ChannelID)
	} else {
		err = s.LeaveChannel(event.UserID, event.ChannelID)
	}
	if err != nil {
		logger.Warn("failed to apply room membership event", "error", err, "channel", event.ChannelID, "user", event.UserID)
	}
}
