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

// Package pipeline implements the write-first, read-latest message
// storage described in spec §4.7: messages land in Redis immediately and
// are persisted to durable storage in batches, with reads transparently
// merging both sources.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"gorm.io/gorm"
)

const (
	globalCounterKey   = "global_message_id_counter"
	pendingMessagesKey = "pending_messages"
	messageTTL         = 7 * 24 * time.Hour
	maxChannelBuffer   = 1000
	batchSize          = 100
)

// Message is the pipeline's read-path shape, hydrated from either a
// Redis hash or a durably stored ChatMessage row.
type Message struct {
	ID        uint64
	ChannelID uint
	SenderID  uint
	Content   string
	IsAction  bool
	Timestamp time.Time
	Persisted bool
}

// Pipeline owns the Redis-backed write path and the durable fallback.
type Pipeline struct {
	kv kv.KV
	db *gorm.DB
}

func New(store kv.KV, db *gorm.DB) *Pipeline {
	return &Pipeline{kv: store, db: db}
}

func hashKey(channelID uint, id uint64) string {
	return fmt.Sprintf("msg:%d:%d", channelID, id)
}

func zsetKey(channelID uint) string {
	return fmt.Sprintf("channel:%d:messages", channelID)
}

func lastMsgKey(channelID uint) string {
	return fmt.Sprintf("channel:%d:last_msg", channelID)
}

// Publish assigns the next globally monotonic id, writes the message hash
// and its zset entry, and — unless ephemeral (a multiplayer-room
// channel) — queues it for the batch persister (spec §4.7 "Storage").
func (p *Pipeline) Publish(ctx context.Context, channelID, senderID uint, content string, isAction, ephemeral bool) (*Message, error) {
	id, err := p.kv.Incr(ctx, globalCounterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate message id: %w", err)
	}
	msg := &Message{
		ID:        uint64(id),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		IsAction:  isAction,
		Timestamp: time.Now(),
	}

	fields := map[string]string{
		"id":         strconv.FormatUint(msg.ID, 10),
		"channel_id": strconv.FormatUint(uint64(channelID), 10),
		"sender_id":  strconv.FormatUint(uint64(senderID), 10),
		"content":    content,
		"is_action":  strconv.FormatBool(isAction),
		"timestamp":  msg.Timestamp.Format(time.RFC3339Nano),
		"status":     "pending",
	}
	key := hashKey(channelID, msg.ID)
	if err := p.kv.HSet(ctx, key, fields); err != nil {
		return nil, fmt.Errorf("failed to write message hash: %w", err)
	}
	if err := p.kv.Expire(ctx, key, messageTTL); err != nil {
		return nil, fmt.Errorf("failed to set message ttl: %w", err)
	}

	zkey := zsetKey(channelID)
	if err := p.kv.ZAdd(ctx, zkey, float64(msg.ID), strconv.FormatUint(msg.ID, 10)); err != nil {
		return nil, fmt.Errorf("failed to add message to channel set: %w", err)
	}
	p.capChannelBuffer(ctx, zkey)

	if err := p.kv.Set(ctx, lastMsgKey(channelID), []byte(strconv.FormatUint(msg.ID, 10))); err != nil {
		return nil, fmt.Errorf("failed to set channel last message id: %w", err)
	}

	if !ephemeral {
		if _, err := p.kv.RPush(ctx, pendingMessagesKey, []byte(fmt.Sprintf("%d:%d", channelID, msg.ID))); err != nil {
			return nil, fmt.Errorf("failed to queue message for persistence: %w", err)
		}
	} else {
		fields["status"] = "ephemeral"
		_ = p.kv.HSet(ctx, key, fields)
	}

	return msg, nil
}

func (p *Pipeline) capChannelBuffer(ctx context.Context, zkey string) {
	card, err := p.kv.ZCard(ctx, zkey)
	if err != nil || card <= maxChannelBuffer {
		return
	}
	_ = p.kv.ZRemRangeByRank(ctx, zkey, 0, card-maxChannelBuffer-1)
}

// GetMessages implements spec §4.7's "Read" rules: since/until select the
// Redis range, falling back to durable storage only when Redis can't
// satisfy the request.
func (p *Pipeline) GetMessages(ctx context.Context, channelID uint, limit int, since, until uint64) ([]Message, error) {
	switch {
	case since > 0:
		return p.getSince(ctx, channelID, limit, since)
	case until > 0:
		return p.getUntil(ctx, channelID, limit, until)
	default:
		return p.getLatest(ctx, channelID, limit)
	}
}

func (p *Pipeline) getSince(ctx context.Context, channelID uint, limit int, since uint64) ([]Message, error) {
	ids, err := p.kv.ZRangeByScore(ctx, zsetKey(channelID), float64(since)+1, posInf, int64(limit))
	if err != nil {
		return nil, err
	}
	msgs := p.hydrateAll(ctx, channelID, ids)
	if len(msgs) >= limit {
		return msgs, nil
	}
	rows, err := models.MessagesSince(p.db, channelID, since, limit-len(msgs))
	if err != nil {
		return msgs, err
	}
	return mergeDurable(msgs, rows, true), nil
}

func (p *Pipeline) getUntil(ctx context.Context, channelID uint, limit int, until uint64) ([]Message, error) {
	ids, err := p.kv.ZRevRangeByScore(ctx, zsetKey(channelID), 0, float64(until)-1, int64(limit))
	if err != nil {
		return nil, err
	}
	msgs := p.hydrateAll(ctx, channelID, ids)
	reverse(msgs)
	if len(msgs) >= limit {
		return msgs, nil
	}
	rows, err := models.MessagesUntil(p.db, channelID, until, limit-len(msgs))
	if err != nil {
		return msgs, err
	}
	reverseRows(rows)
	return mergeDurable(msgs, rows, false), nil
}

func (p *Pipeline) getLatest(ctx context.Context, channelID uint, limit int) ([]Message, error) {
	ids, err := p.kv.ZRevRangeByScore(ctx, zsetKey(channelID), 0, posInf, int64(limit))
	if err != nil {
		return nil, err
	}
	msgs := p.hydrateAll(ctx, channelID, ids)
	reverse(msgs)
	if len(msgs) > 0 {
		return msgs, nil
	}
	rows, err := models.LatestMessages(p.db, channelID, limit)
	if err != nil {
		return nil, err
	}
	reverseRows(rows)
	return mergeDurable(nil, rows, false), nil
}

// posInf stands in for Redis's "+inf" range bound; the in-memory and
// redis ZRangeByScore/ZRevRangeByScore implementations both treat a very
// large float as unbounded for this codebase's id range.
const posInf = 1 << 62

func (p *Pipeline) hydrateAll(ctx context.Context, channelID uint, ids []string) []Message {
	out := make([]Message, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		fields, err := p.kv.HGetAll(ctx, hashKey(channelID, id))
		if err != nil || len(fields) == 0 {
			continue
		}
		msg := Message{
			ID:        id,
			ChannelID: channelID,
			Content:   fields["content"],
			IsAction:  fields["is_action"] == "true",
			Persisted: fields["status"] == "persisted",
		}
		if sid, err := strconv.ParseUint(fields["sender_id"], 10, 64); err == nil {
			msg.SenderID = uint(sid)
		}
		if ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"]); err == nil {
			msg.Timestamp = ts
		}
		out = append(out, msg)
	}
	return out
}

func mergeDurable(existing []Message, rows []models.ChatMessage, fromDurableAppendsAfter bool) []Message {
	seen := make(map[uint64]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	durable := make([]Message, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.MessageID]; ok {
			continue
		}
		durable = append(durable, Message{
			ID:        r.MessageID,
			ChannelID: r.ChannelID,
			SenderID:  r.SenderID,
			Content:   r.Content,
			IsAction:  r.IsAction,
			Timestamp: r.Timestamp,
			Persisted: true,
		})
	}
	if fromDurableAppendsAfter {
		return append(existing, durable...)
	}
	return append(durable, existing...)
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func reverseRows(rows []models.ChatMessage) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// Seed primes the global id counter past the highest id ever persisted
// and repairs channel sorted sets whose key type was clobbered by
// something else (spec §4.7 "Startup").
func (p *Pipeline) Seed(ctx context.Context) error {
	dbMax, err := models.MaxMessageID(p.db)
	if err != nil {
		return fmt.Errorf("failed to read max persisted message id: %w", err)
	}
	current, err := p.kv.Incr(ctx, globalCounterKey)
	if err != nil {
		return fmt.Errorf("failed to read redis message id counter: %w", err)
	}
	if uint64(current-1) < dbMax {
		if err := p.kv.Set(ctx, globalCounterKey, []byte(strconv.FormatUint(dbMax, 10))); err != nil {
			return fmt.Errorf("failed to seed message id counter: %w", err)
		}
	} else {
		// Incr above bumped the counter by one as a side effect of reading
		// it; put it back so seeding is idempotent.
		_ = p.kv.Set(ctx, globalCounterKey, []byte(strconv.FormatInt(current-1, 10)))
	}

	keys, _, err := p.kv.Scan(ctx, 0, "channel:*", 1000)
	if err != nil {
		return fmt.Errorf("failed to scan channel message sets: %w", err)
	}
	for _, key := range keys {
		if !strings.HasSuffix(key, ":messages") {
			continue
		}
		typ, err := p.kv.Type(ctx, key)
		if err != nil {
			continue
		}
		if typ != "zset" && typ != "none" {
			_ = p.kv.Delete(ctx, key)
		}
	}
	return nil
}
