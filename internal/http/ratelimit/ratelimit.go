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

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/gin-gonic/gin"
)

// KVStore implements gin-rate-limit's Store on top of the kv package, so
// rate-limit counters are shared across replicas the same way hub session
// state is (redis in production, in-memory for single-node/tests).
type KVStore struct {
	kv    kv.KV
	rate  time.Duration
	limit uint
}

type KVOptions struct {
	KV    kv.KV
	Rate  time.Duration
	Limit uint
}

func NewKVStore(options *KVOptions) *KVStore {
	return &KVStore{
		kv:    options.KV,
		rate:  options.Rate,
		limit: options.Limit,
	}
}

type bucket struct {
	Hits      int64     `json:"hits"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *KVStore) Limit(key string, c *gin.Context) (ret ratelimit.Info) {
	ret.Limit = s.limit
	ctx := c.Request.Context()
	storeKey := "ratelimit:" + key

	b := bucket{Timestamp: time.Now()}
	if raw, err := s.kv.Get(ctx, storeKey); err == nil {
		if jsonErr := json.Unmarshal(raw, &b); jsonErr != nil {
			slog.Error("failed to decode ratelimit bucket", "error", jsonErr)
		}
	}

	ret.ResetTime = time.Now().Add(s.rate - time.Since(b.Timestamp))

	if b.Timestamp.Add(s.rate).Before(time.Now()) {
		b.Hits = 0
		b.Timestamp = time.Now()
	}

	if b.Hits >= int64(s.limit) {
		ret.RateLimited = true
		ret.RemainingHits = 0
	} else {
		b.Hits++
		ret.RemainingHits = s.limit - uint(b.Hits)
	}

	encoded, err := json.Marshal(b)
	if err != nil {
		slog.Error("failed to encode ratelimit bucket", "error", err)
		return
	}
	if err := s.kv.Set(ctx, storeKey, encoded); err != nil {
		slog.Error("failed to save ratelimit bucket", "error", err)
		return
	}
	if err := s.kv.Expire(ctx, storeKey, s.rate); err != nil {
		slog.Error("failed to set ratelimit bucket ttl", "error", err)
	}

	return
}
