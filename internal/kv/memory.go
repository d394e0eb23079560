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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/puzpuzpuz/xsync/v4"
)

func makeInMemoryKV(_ context.Context, _ *config.Config) (KV, error) {
	return &inMemoryKV{
		kv: xsync.NewMap[string, *kvValue](),
	}, nil
}

type kvValue struct {
	mu    sync.Mutex
	value []byte
	list  [][]byte
	hash  map[string]string
	zset  map[string]float64
	ttl   time.Time
}

func (v *kvValue) expired() bool {
	return !v.ttl.IsZero() && v.ttl.Before(time.Now())
}

type inMemoryKV struct {
	kv *xsync.Map[string, *kvValue]
}

func (m *inMemoryKV) load(key string) (*kvValue, bool) {
	v, ok := m.kv.Load(key)
	if !ok {
		return nil, false
	}
	if v.expired() {
		m.kv.Delete(key)
		return nil, false
	}
	return v, true
}

func (m *inMemoryKV) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.load(key)
	return ok, nil
}

func (m *inMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.load(key)
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return v.value, nil
}

func (m *inMemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.kv.Store(key, &kvValue{value: value})
	return nil
}

func (m *inMemoryKV) Delete(_ context.Context, key string) error {
	m.kv.Delete(key)
	return nil
}

func (m *inMemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	v, ok := m.load(key)
	if !ok {
		return fmt.Errorf("key %s not found", key)
	}
	if ttl <= 0 {
		m.kv.Delete(key)
		return nil
	}
	v.ttl = time.Now().Add(ttl)
	return nil
}

// Scan supports exact-match, empty (everything), and trailing-glob
// ("prefix*") patterns, matching the subset of redis SCAN MATCH that the
// rest of the codebase relies on.
func (m *inMemoryKV) Scan(_ context.Context, _ uint64, match string, _ int64) ([]string, uint64, error) {
	prefix, isPrefix := strings.CutSuffix(match, "*")
	keys := make([]string, 0)
	m.kv.Range(func(key string, v *kvValue) bool {
		if v.expired() {
			m.kv.Delete(key)
			return true
		}
		if match == "" || match == key || (isPrefix && strings.HasPrefix(key, prefix)) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, 0, nil
}

func (m *inMemoryKV) RPush(_ context.Context, key string, value []byte) (int64, error) {
	v, ok := m.kv.Load(key)
	if !ok || v.expired() {
		v = &kvValue{}
		m.kv.Store(key, v)
	}
	v.list = append(v.list, value)
	return int64(len(v.list)), nil
}

func (m *inMemoryKV) LDrain(_ context.Context, key string) ([][]byte, error) {
	v, ok := m.load(key)
	if !ok {
		return nil, nil
	}
	out := v.list
	m.kv.Delete(key)
	return out, nil
}

// LPopN pops up to count elements from the head of the list, returning
// fewer (or none) if the list is shorter.
func (m *inMemoryKV) LPopN(_ context.Context, key string, count int64) ([][]byte, error) {
	v, ok := m.load(key)
	if !ok {
		return nil, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	n := int64(len(v.list))
	if n > count {
		n = count
	}
	out := v.list[:n]
	v.list = v.list[n:]
	return out, nil
}

var incrMu sync.Mutex

// Incr is load-then-store, not compare-and-swap, matching the teacher's
// own non-atomic Expire; the in-memory KV only backs single-process
// deployments, so a package-level mutex is enough to keep concurrent
// Incr calls from losing updates to each other.
func (m *inMemoryKV) Incr(_ context.Context, key string) (int64, error) {
	incrMu.Lock()
	defer incrMu.Unlock()

	v, ok := m.kv.Load(key)
	if !ok || v.expired() {
		v = &kvValue{}
		m.kv.Store(key, v)
	}
	var current int64
	if len(v.value) > 0 {
		fmt.Sscanf(string(v.value), "%d", &current)
	}
	current++
	v.value = []byte(fmt.Sprintf("%d", current))
	return current, nil
}

func (m *inMemoryKV) HSet(_ context.Context, key string, fields map[string]string) error {
	v, ok := m.kv.Load(key)
	if !ok || v.expired() {
		v = &kvValue{}
		m.kv.Store(key, v)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hash == nil {
		v.hash = make(map[string]string, len(fields))
	}
	for k, val := range fields {
		v.hash[k] = val
	}
	return nil
}

func (m *inMemoryKV) HGetAll(_ context.Context, key string) (map[string]string, error) {
	v, ok := m.load(key)
	if !ok {
		return map[string]string{}, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]string, len(v.hash))
	for k, val := range v.hash {
		out[k] = val
	}
	return out, nil
}

func (m *inMemoryKV) ZAdd(_ context.Context, key string, score float64, member string) error {
	v, ok := m.kv.Load(key)
	if !ok || v.expired() {
		v = &kvValue{}
		m.kv.Store(key, v)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.zset == nil {
		v.zset = make(map[string]float64)
	}
	v.zset[member] = score
	return nil
}

type zsetEntry struct {
	member string
	score  float64
}

func (m *inMemoryKV) zsetInRange(key string, minScore, maxScore float64) []zsetEntry {
	v, ok := m.load(key)
	if !ok {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]zsetEntry, 0, len(v.zset))
	for member, score := range v.zset {
		if score >= minScore && score <= maxScore {
			out = append(out, zsetEntry{member: member, score: score})
		}
	}
	return out
}

func (m *inMemoryKV) ZRangeByScore(_ context.Context, key string, minScore, maxScore float64, limit int64) ([]string, error) {
	entries := m.zsetInRange(key, minScore, maxScore)
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out, nil
}

func (m *inMemoryKV) ZRevRangeByScore(_ context.Context, key string, minScore, maxScore float64, limit int64) ([]string, error) {
	entries := m.zsetInRange(key, minScore, maxScore)
	sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })
	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out, nil
}

// ZRemRangeByRank removes members ranked [start, stop] ascending by
// score, with Redis's negative-index-from-the-end convention.
func (m *inMemoryKV) ZRemRangeByRank(_ context.Context, key string, start, stop int64) error {
	v, ok := m.load(key)
	if !ok {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	entries := make([]zsetEntry, 0, len(v.zset))
	for member, score := range v.zset {
		entries = append(entries, zsetEntry{member: member, score: score})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })

	n := int64(len(entries))
	norm := func(i int64) int64 {
		if i < 0 {
			i += n
		}
		if i < 0 {
			i = 0
		}
		if i > n {
			i = n
		}
		return i
	}
	s, e := norm(start), norm(stop)+1
	if e > n {
		e = n
	}
	if s >= e {
		return nil
	}
	for _, entry := range entries[s:e] {
		delete(v.zset, entry.member)
	}
	return nil
}

func (m *inMemoryKV) ZCard(_ context.Context, key string) (int64, error) {
	v, ok := m.load(key)
	if !ok {
		return 0, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return int64(len(v.zset)), nil
}

func (m *inMemoryKV) Type(_ context.Context, key string) (string, error) {
	v, ok := m.load(key)
	if !ok {
		return "none", nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case v.zset != nil:
		return "zset", nil
	case v.hash != nil:
		return "hash", nil
	case v.list != nil:
		return "list", nil
	default:
		return "string", nil
	}
}

func (m *inMemoryKV) Close() error {
	return nil
}
