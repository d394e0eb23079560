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
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub/wire"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsBufferSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:    wsBufferSize,
	WriteBufferSize:   wsBufferSize,
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// NegotiateHandler implements `POST /{hub}/negotiate`: the caller must
// already be authenticated and verified (see middleware.RequireBearerToken
// and RequireVerifiedSession), and receives a one-time connection id/token
// pair to redeem on the WebSocket upgrade.
func NegotiateHandler(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.MustGet("User").(models.User)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		connectionID, token, err := h.Negotiate(user.ID)
		if err != nil {
			slog.Error("negotiate failed", "hub", h.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "try again later"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"connectionId":    connectionID,
			"connectionToken": token,
			"availableTransports": []gin.H{
				{"transport": "WebSockets", "transferFormats": []string{"Text", "Binary"}},
			},
		})
	}
}

// ConnectHandler implements `GET /{hub}/connect?id={token}`: upgrades to a
// WebSocket, performs the JSON handshake, then services the connection
// until it closes.
func ConnectHandler(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("id")
		userID, err := h.consumeToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown or expired connection token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "hub", h.Name, "error", err)
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		client := newClient(token, userID, conn, wire.ProtocolJSON, cancel)
		h.serve(ctx, client)
	}
}

// serve performs the handshake and then runs the read/ping loop until the
// connection closes or ctx is canceled.
func (h *Hub) serve(ctx context.Context, client *Client) {
	defer func() {
		_ = client.conn.Close()
	}()

	protocol, err := performHandshake(client.conn)
	if err != nil {
		slog.Warn("hub handshake failed", "hub", h.Name, "error", err)
		return
	}
	client.protocol = protocol

	h.adopt(client)
	if h.lifecycle != nil {
		h.lifecycle.OnConnect(ctx, client)
	}
	defer h.remove(client, "disconnected")

	readFailed := make(chan struct{}, 1)
	go h.readLoop(ctx, client, readFailed)
	go h.pingLoop(ctx, client, readFailed)

	select {
	case <-ctx.Done():
	case <-readFailed:
	}
}

func (h *Hub) readLoop(ctx context.Context, client *Client, failed chan<- struct{}) {
	var jsonBuf []byte
	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			select {
			case failed <- struct{}{}:
			default:
			}
			return
		}

		var packets []*wire.Packet
		if msgType == websocket.BinaryMessage {
			p, err := wire.ReadMessagePack(byteReaderOf(data))
			if err != nil {
				slog.Warn("hub: malformed msgpack frame", "hub", h.Name, "client", client.ID, "error", err)
				continue
			}
			packets = append(packets, p)
		} else {
			jsonBuf = append(jsonBuf, data...)
			var frames [][]byte
			frames, jsonBuf = wire.SplitJSONFrames(jsonBuf)
			for _, frame := range frames {
				p, err := wire.DecodeJSON(frame)
				if err != nil {
					slog.Warn("hub: malformed json frame", "hub", h.Name, "client", client.ID, "error", err)
					continue
				}
				packets = append(packets, p)
			}
		}

		for _, p := range packets {
			// Dispatched on its own goroutine so one slow handler can
			// never block this client's ping or other invocations
			// (spec §4.2 "Invocation accounting").
			go h.dispatch(ctx, client, p)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, client *Client, p *wire.Packet) {
	switch p.Kind {
	case wire.KindCompletion:
		client.resolve(p)
	case wire.KindInvocation:
		h.handleInvocation(ctx, client, p)
	case wire.KindPing:
		// client pings are purely a liveness signal, no reply required.
	case wire.KindClose:
		client.Close("client closed", false)
	}
}

func (h *Hub) handleInvocation(ctx context.Context, client *Client, p *wire.Packet) {
	fn, ok := h.methods[p.Target]
	if !ok {
		if p.InvocationID != nil {
			errMsg := "unknown method: " + p.Target
			_ = client.send(&wire.Packet{Kind: wire.KindCompletion, InvocationID: p.InvocationID, Error: errMsg})
		}
		return
	}

	result, err := fn(ctx, client, p.Arguments)
	if p.InvocationID == nil {
		return
	}
	completion := &wire.Packet{Kind: wire.KindCompletion, InvocationID: p.InvocationID}
	if err != nil {
		completion.Error = err.Error()
	} else {
		completion.Result = result
	}
	if sendErr := client.send(completion); sendErr != nil {
		slog.Warn("hub: failed to send completion", "hub", h.Name, "client", client.ID, "error", sendErr)
	}
}

func (h *Hub) pingLoop(ctx context.Context, client *Client, failed chan<- struct{}) {
	ticker := newTicker(h.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.send(&wire.Packet{Kind: wire.KindPing}); err != nil {
				select {
				case failed <- struct{}{}:
				default:
				}
				return
			}
		}
	}
}
