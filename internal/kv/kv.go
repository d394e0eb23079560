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

package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
)

type KV interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	// RPush appends a value to a list stored under key. Returns the new length.
	RPush(ctx context.Context, key string, value []byte) (int64, error)
	// LDrain returns all elements of the list and deletes the key. It is not
	// atomic: a value pushed between the read and the delete is dropped.
	LDrain(ctx context.Context, key string) ([][]byte, error)
	// LPopN pops up to count elements from the head of the list, returning
	// fewer if the list is shorter. Used by the message pipeline's batch
	// persister instead of a true blocking pop.
	LPopN(ctx context.Context, key string, count int64) ([][]byte, error)
	// Incr atomically increments the integer stored under key and returns
	// the new value, used for the message pipeline's global id counter.
	Incr(ctx context.Context, key string) (int64, error)
	// HSet stores a hash of fields under key.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns every field of the hash stored under key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// ZAdd adds member with score to the sorted set stored under key.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRangeByScore returns members with min <= score <= max, ascending,
	// capped at limit (0 means unlimited).
	ZRangeByScore(ctx context.Context, key string, minScore, maxScore float64, limit int64) ([]string, error)
	// ZRevRangeByScore returns members with min <= score <= max,
	// descending, capped at limit (0 means unlimited).
	ZRevRangeByScore(ctx context.Context, key string, minScore, maxScore float64, limit int64) ([]string, error)
	// ZRemRangeByRank removes members by 0-based rank range (Redis
	// semantics: negative indices count from the end).
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error
	// ZCard returns the number of members in the sorted set.
	ZCard(ctx context.Context, key string) (int64, error)
	// Type reports the redis-style type name of key ("none", "string",
	// "list", "hash", "zset"), used by the pipeline's Seed to delete
	// channel message keys that are not sorted sets.
	Type(ctx context.Context, key string) (string, error)
	Close() error
}

// MakeKV creates a new key-value store client.
func MakeKV(ctx context.Context, config *config.Config) (KV, error) {
	if config.Redis.Enabled {
		redisKV, err := makeRedisKV(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis kv: %w", err)
		}
		return redisKV, nil
	}

	return makeInMemoryKV(ctx, config)
}
