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

package pipeline_test

import (
	"context"
	"testing"

	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/USA-RedDragon/configulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testBackends(t *testing.T) (kv.KV, *gorm.DB) {
	t.Helper()
	defConfig, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	defConfig.Database.Database = ""
	defConfig.Database.ExtraParameters = []string{}

	database, err := db.MakeDB(&defConfig)
	require.NoError(t, err)

	kvStore, err := kv.MakeKV(context.Background(), &defConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvStore.Close() })

	return kvStore, database
}

func TestPublishAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	first, err := p.Publish(context.Background(), 1, 10, "hello", false, false)
	require.NoError(t, err)
	second, err := p.Publish(context.Background(), 1, 10, "again", false, false)
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
}

func TestPublishEphemeralDoesNotQueuePersistence(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	_, err := p.Publish(context.Background(), 1, 10, "room chat", false, true)
	require.NoError(t, err)

	pending, err := store.LDrain(context.Background(), "pending_messages")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPublishNonEphemeralQueuesPersistence(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	_, err := p.Publish(context.Background(), 1, 10, "public chat", false, false)
	require.NoError(t, err)

	pending, err := store.LDrain(context.Background(), "pending_messages")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGetMessagesLatestReadsBackFromRedis(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)
	ctx := context.Background()

	_, err := p.Publish(ctx, 1, 10, "first", false, false)
	require.NoError(t, err)
	_, err = p.Publish(ctx, 1, 10, "second", false, false)
	require.NoError(t, err)

	msgs, err := p.GetMessages(ctx, 1, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestGetMessagesFallsBackToDurableStorage(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	require.NoError(t, database.Create(&models.ChatMessage{
		MessageID: 1, ChannelID: 5, SenderID: 10, Content: "archived",
	}).Error)

	msgs, err := p.GetMessages(context.Background(), 5, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Persisted)
	assert.Equal(t, "archived", msgs[0].Content)
}

func TestSeedAdvancesCounterPastPersistedMax(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	require.NoError(t, database.Create(&models.ChatMessage{MessageID: 500, ChannelID: 1, SenderID: 1}).Error)
	require.NoError(t, p.Seed(context.Background()))

	msg, err := p.Publish(context.Background(), 1, 1, "after seed", false, true)
	require.NoError(t, err)
	assert.Greater(t, msg.ID, uint64(500))
}

func TestSeedIdempotentWithNoPersistedMessages(t *testing.T) {
	t.Parallel()
	store, database := testBackends(t)
	p := pipeline.New(store, database)

	require.NoError(t, p.Seed(context.Background()))
	require.NoError(t, p.Seed(context.Background()))

	msg, err := p.Publish(context.Background(), 1, 1, "hi", false, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), msg.ID)
}
