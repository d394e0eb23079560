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

package hub

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// MethodHandler dispatches one named invocation for a client, returning
// the value to place in the Completion packet's result field.
type MethodHandler func(ctx context.Context, client *Client, args []any) (any, error)

// Lifecycle lets a hub react to a client joining or leaving, e.g. to
// clean up multiplayer/spectator per-client state (spec §4.2 "reconnect
// kicks the predecessor; its state is cleaned").
type Lifecycle interface {
	OnConnect(ctx context.Context, client *Client)
	OnDisconnect(client *Client, reason string)
}

// Hub is one negotiated RPC endpoint (multiplayer, spectator, or
// metadata), owning its connected clients, named groups, and method
// dispatch table.
type Hub struct {
	Name         string
	PingInterval time.Duration

	mu          sync.RWMutex
	pendingConn map[string]pendingConnection
	clients     *xsync.Map[string, *Client]
	groups      *xsync.Map[string, *xsync.Map[string, *Client]]
	methods     map[string]MethodHandler
	lifecycle   Lifecycle
}

type pendingConnection struct {
	userID    uint
	expiresAt time.Time
}

// DeferredLifecycle breaks the construction cycle between a Hub and the
// service that both consumes it (to call Handle/Broadcast) and serves as
// its Lifecycle: build one, pass it to New, construct the service with
// the resulting Hub, then Set the service on the DeferredLifecycle before
// the hub starts accepting connections.
type DeferredLifecycle struct {
	mu     sync.RWMutex
	target Lifecycle
}

// NewDeferredLifecycle returns a Lifecycle that forwards to whatever is
// passed to Set, once set.
func NewDeferredLifecycle() *DeferredLifecycle {
	return &DeferredLifecycle{}
}

// Set binds the real Lifecycle implementation. Must be called before the
// hub is exposed to incoming connections.
func (d *DeferredLifecycle) Set(target Lifecycle) {
	d.mu.Lock()
	d.target = target
	d.mu.Unlock()
}

func (d *DeferredLifecycle) OnConnect(ctx context.Context, client *Client) {
	d.mu.RLock()
	target := d.target
	d.mu.RUnlock()
	if target != nil {
		target.OnConnect(ctx, client)
	}
}

func (d *DeferredLifecycle) OnDisconnect(client *Client, reason string) {
	d.mu.RLock()
	target := d.target
	d.mu.RUnlock()
	if target != nil {
		target.OnDisconnect(client, reason)
	}
}

const negotiateTokenTTL = 30 * time.Second

// New creates a Hub with an empty method table; register handlers with
// Handle before serving connections.
func New(name string, pingInterval time.Duration, lifecycle Lifecycle) *Hub {
	return &Hub{
		Name:         name,
		PingInterval: pingInterval,
		pendingConn:  make(map[string]pendingConnection),
		clients:      xsync.NewMap[string, *Client](),
		groups:       xsync.NewMap[string, *xsync.Map[string, *Client]](),
		methods:      make(map[string]MethodHandler),
		lifecycle:    lifecycle,
	}
}

// Handle registers target as a dispatchable RPC method.
func (h *Hub) Handle(target string, fn MethodHandler) {
	h.methods[target] = fn
}

// Negotiate issues a one-time connection token bound to userID, consumed
// by the next WebSocket upgrade within negotiateTokenTTL.
func (h *Hub) Negotiate(userID uint) (connectionID, token string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate connection id: %w", err)
	}
	connectionID = base64.RawURLEncoding.EncodeToString(buf)

	h.mu.Lock()
	h.pendingConn[connectionID] = pendingConnection{userID: userID, expiresAt: time.Now().Add(negotiateTokenTTL)}
	h.mu.Unlock()

	return connectionID, connectionID, nil
}

var ErrUnknownConnection = errors.New("unknown or expired connection token")

func (h *Hub) consumeToken(token string) (uint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending, ok := h.pendingConn[token]
	delete(h.pendingConn, token)
	if !ok || time.Now().After(pending.expiresAt) {
		return 0, ErrUnknownConnection
	}
	return pending.userID, nil
}

// adopt registers a newly handshaken client, kicking any predecessor
// occupying the same connection id (spec §4.2 reconnect semantics).
func (h *Hub) adopt(client *Client) {
	if old, ok := h.clients.Load(client.ID); ok {
		old.Close("replaced by reconnect", false)
		if h.lifecycle != nil {
			h.lifecycle.OnDisconnect(old, "reconnected")
		}
	}
	h.clients.Store(client.ID, client)
}

func (h *Hub) remove(client *Client, reason string) {
	h.clients.Delete(client.ID)
	client.groups.Range(func(name string, _ struct{}) bool {
		h.leaveGroupLocked(name, client)
		return true
	})
	if h.lifecycle != nil {
		h.lifecycle.OnDisconnect(client, reason)
	}
}

// group returns the named group, creating it on first use.
func (h *Hub) group(name string) *xsync.Map[string, *Client] {
	g, _ := h.groups.LoadOrCompute(name, func() (*xsync.Map[string, *Client], bool) {
		return xsync.NewMap[string, *Client](), false
	})
	return g
}

// JoinGroup adds client to the named group; membership is tracked on both
// sides so disconnect cleanup is O(groups the client joined).
func (h *Hub) JoinGroup(name string, client *Client) {
	h.group(name).Store(client.ID, client)
	client.groups.Store(name, struct{}{})
}

// LeaveGroup removes client from the named group.
func (h *Hub) LeaveGroup(name string, client *Client) {
	h.leaveGroupLocked(name, client)
	client.groups.Delete(name)
}

func (h *Hub) leaveGroupLocked(name string, client *Client) {
	if g, ok := h.groups.Load(name); ok {
		g.Delete(client.ID)
	}
}

// Broadcast fans out a no-block invocation to every member of a group
// concurrently (spec §4.2 "Groups").
func (h *Hub) Broadcast(group, target string, args ...any) {
	g, ok := h.groups.Load(group)
	if !ok {
		return
	}
	g.Range(func(_ string, client *Client) bool {
		go func(c *Client) {
			if err := c.CallNoBlock(target, args...); err != nil {
				slog.Warn("hub: broadcast failed", "hub", h.Name, "client", c.ID, "target", target, "error", err)
			}
		}(client)
		return true
	})
}

// ClientByUserID finds a connected client for userID, used for direct
// server-initiated calls (invites, presence pokes).
func (h *Hub) ClientByUserID(userID uint) (*Client, bool) {
	var found *Client
	h.clients.Range(func(_ string, c *Client) bool {
		if c.UserID == userID {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}
