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

package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/stretchr/testify/assert"
)

type recordingLifecycle struct {
	connected    []uint
	disconnected []uint
}

func (r *recordingLifecycle) OnConnect(_ context.Context, client *hub.Client) {
	r.connected = append(r.connected, client.UserID)
}

func (r *recordingLifecycle) OnDisconnect(client *hub.Client, _ string) {
	r.disconnected = append(r.disconnected, client.UserID)
}

func TestDeferredLifecycleForwardsOnceSet(t *testing.T) {
	t.Parallel()

	deferred := hub.NewDeferredLifecycle()

	// Before Set, calls must not panic even with no target bound.
	deferred.OnConnect(context.Background(), &hub.Client{UserID: 1})
	deferred.OnDisconnect(&hub.Client{UserID: 1}, "early")

	target := &recordingLifecycle{}
	deferred.Set(target)

	deferred.OnConnect(context.Background(), &hub.Client{UserID: 42})
	deferred.OnDisconnect(&hub.Client{UserID: 42}, "done")

	assert.Equal(t, []uint{42}, target.connected)
	assert.Equal(t, []uint{42}, target.disconnected)
}

func TestDeferredLifecycleNoopBeforeSet(t *testing.T) {
	t.Parallel()

	deferred := hub.NewDeferredLifecycle()
	assert.NotPanics(t, func() {
		deferred.OnConnect(context.Background(), &hub.Client{UserID: 7})
		deferred.OnDisconnect(&hub.Client{UserID: 7}, "reason")
	})
}

func TestHubNegotiateIssuesUniqueTokens(t *testing.T) {
	t.Parallel()

	h := hub.New("test", time.Second, hub.NewDeferredLifecycle())

	id1, token1, err := h.Negotiate(1)
	assert.NoError(t, err)
	id2, token2, err := h.Negotiate(2)
	assert.NoError(t, err)

	assert.NotEmpty(t, token1)
	assert.NotEmpty(t, token2)
	assert.Equal(t, id1, token1)
	assert.Equal(t, id2, token2)
	assert.NotEqual(t, token1, token2)
}

func TestHubClientByUserIDMissing(t *testing.T) {
	t.Parallel()

	h := hub.New("test", time.Second, hub.NewDeferredLifecycle())
	_, ok := h.ClientByUserID(99)
	assert.False(t, ok)
}

func TestHubBroadcastToEmptyGroupIsNoop(t *testing.T) {
	t.Parallel()

	h := hub.New("test", time.Second, hub.NewDeferredLifecycle())
	assert.NotPanics(t, func() {
		h.Broadcast("nonexistent-group", "some.target", 1, 2, 3)
	})
}
