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

package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"gorm.io/gorm"
)

const persisterIdleInterval = 2 * time.Second

// RunBatchPersister pops up to batchSize queued message keys at a time
// and writes them to durable storage inside one transaction, matching
// spec §4.7's batch persister. It blocks until ctx is canceled, so the
// caller runs it in its own goroutine.
func (p *Pipeline) RunBatchPersister(ctx context.Context) {
	logger := slog.With("component", "chat-pipeline-persister")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		keys, err := p.kv.LPopN(ctx, pendingMessagesKey, batchSize)
		if err != nil {
			logger.Error("failed to pop pending messages", "error", err)
			time.Sleep(persisterIdleInterval)
			continue
		}
		if len(keys) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(persisterIdleInterval):
			}
			continue
		}

		p.persistBatch(ctx, logger, keys)
	}
}

func (p *Pipeline) persistBatch(ctx context.Context, logger *slog.Logger, keys [][]byte) {
	rows := make([]models.ChatMessage, 0, len(keys))
	persistedKeys := make([]string, 0, len(keys))

	for _, raw := range keys {
		channelID, id, ok := parsePendingKey(string(raw))
		if !ok {
			logger.Warn("malformed pending message key", "key", string(raw))
			continue
		}
		fields, err := p.kv.HGetAll(ctx, hashKey(channelID, id))
		if err != nil || len(fields) == 0 {
			logger.Warn("pending message hash missing or expired", "channel", channelID, "id", id)
			continue
		}
		row := models.ChatMessage{
			MessageID: id,
			ChannelID: channelID,
			Content:   fields["content"],
			IsAction:  fields["is_action"] == "true",
		}
		if sid, err := strconv.ParseUint(fields["sender_id"], 10, 64); err == nil {
			row.SenderID = uint(sid)
		}
		if ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"]); err == nil {
			row.Timestamp = ts
		}
		rows = append(rows, row)
		persistedKeys = append(persistedKeys, string(raw))
	}

	if len(rows) == 0 {
		return
	}

	txErr := p.db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := models.PersistChatMessage(tx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		logger.Error("failed to persist message batch", "error", txErr, "count", len(rows))
		return
	}

	for _, raw := range persistedKeys {
		channelID, id, ok := parsePendingKey(raw)
		if !ok {
			continue
		}
		_ = p.kv.HSet(ctx, hashKey(channelID, id), map[string]string{"status": "persisted"})
	}
}

func parsePendingKey(raw string) (channelID uint, id uint64, ok bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	c, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	i, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uint(c), i, true
}
