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

// Package hub implements the strongly-typed RPC-over-WebSocket runtime
// (spec §4.2) shared by the multiplayer, spectator, and metadata hubs:
// handshake, invocation accounting, group broadcast, ping keepalive, and
// the pluggable MessagePack/JSON wire codecs in internal/hub/wire.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/USA-RedDragon/DMRHub/internal/hub/wire"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
)

// invocationIDModulus bounds the client-side invocation counter, which
// wraps rather than overflows (spec §4.2).
const invocationIDModulus = 1 << 53

type pendingCall struct {
	result chan *wire.Packet
}

// Client is one connected WebSocket peer bound to a single hub, carrying
// its own invocation counter and in-flight completion promises so a
// server-initiated call can be awaited.
type Client struct {
	ID         string
	UserID     uint
	ConnToken  string
	conn       *websocket.Conn
	protocol   string
	writeMu    sync.Mutex
	nextInvoke atomic.Int64
	pending    *xsync.Map[int64, *pendingCall]
	groups     *xsync.Map[string, struct{}]
	closed     atomic.Bool
	cancel     context.CancelFunc
}

func newClient(id string, userID uint, conn *websocket.Conn, protocol string, cancel context.CancelFunc) *Client {
	return &Client{
		ID:        id,
		UserID:    userID,
		conn:      conn,
		protocol:  protocol,
		pending:   xsync.NewMap[int64, *pendingCall](),
		groups:    xsync.NewMap[string, struct{}](),
		cancel:    cancel,
	}
}

func (c *Client) nextInvocationID() int64 {
	return c.nextInvoke.Add(1) % invocationIDModulus
}

// send writes p on the connection using the client's negotiated codec.
// Callers MUST hold no other lock; send takes writeMu itself since the
// ping loop and RPC replies race against each other.
func (c *Client) send(p *wire.Packet) error {
	if c.closed.Load() {
		return fmt.Errorf("client %s is closed", c.ID)
	}

	var payload []byte
	var err error
	var msgType int
	switch c.protocol {
	case wire.ProtocolMessagePack:
		payload, err = wire.EncodeMessagePack(p)
		msgType = websocket.BinaryMessage
	default:
		payload, err = wire.EncodeJSON(p)
		msgType = websocket.TextMessage
	}
	if err != nil {
		return fmt.Errorf("failed to encode packet: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// CallNoBlock sends a fire-and-forget invocation, allocating no id and
// never waiting for a Completion.
func (c *Client) CallNoBlock(target string, args ...any) error {
	return c.send(&wire.Packet{Kind: wire.KindInvocation, Target: target, Arguments: args})
}

// Call sends an invocation and blocks until its Completion arrives or ctx
// is canceled.
func (c *Client) Call(ctx context.Context, target string, args ...any) (*wire.Packet, error) {
	id := c.nextInvocationID()
	call := &pendingCall{result: make(chan *wire.Packet, 1)}
	c.pending.Store(id, call)
	defer c.pending.Delete(id)

	if err := c.send(&wire.Packet{Kind: wire.KindInvocation, InvocationID: &id, Target: target, Arguments: args}); err != nil {
		return nil, err
	}

	select {
	case result := <-call.result:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve delivers a Completion packet to whichever Call is awaiting it.
func (c *Client) resolve(p *wire.Packet) {
	if p.InvocationID == nil {
		return
	}
	if call, ok := c.pending.Load(*p.InvocationID); ok {
		select {
		case call.result <- p:
		default:
			slog.Warn("hub: dropped completion for invocation with no waiter", "client", c.ID, "invocation_id", *p.InvocationID)
		}
	}
}

// Close sends a Close packet (best-effort) and tears down the connection.
func (c *Client) Close(reason string, allowReconnect bool) {
	if c.closed.Load() {
		return
	}
	_ = c.send(&wire.Packet{Kind: wire.KindClose, Error: reason, AllowReconnect: allowReconnect})
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	_ = c.conn.Close()
}
