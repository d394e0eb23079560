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
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/hub/wire"
	"github.com/gorilla/websocket"
)

// performHandshake reads the client's JSON handshake (always plain JSON
// regardless of the negotiated protocol) and replies with success or an
// error, both record-separator terminated (spec §4.2).
func performHandshake(conn *websocket.Conn) (protocol string, err error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("failed to read handshake: %w", err)
	}

	var hs wire.Handshake
	if err := json.Unmarshal(bytes.TrimSuffix(data, []byte{wire.RecordSeparator}), &hs); err != nil {
		return "", fmt.Errorf("failed to decode handshake: %w", err)
	}

	if hs.Protocol != wire.ProtocolMessagePack && hs.Protocol != wire.ProtocolJSON {
		reply, _ := json.Marshal(wire.HandshakeResponse{Error: "unsupported protocol: " + hs.Protocol})
		_ = conn.WriteMessage(websocket.TextMessage, append(reply, wire.RecordSeparator))
		return "", fmt.Errorf("unsupported protocol: %s", hs.Protocol)
	}

	reply, err := json.Marshal(wire.HandshakeResponse{})
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, append(reply, wire.RecordSeparator)); err != nil {
		return "", fmt.Errorf("failed to write handshake response: %w", err)
	}
	return hs.Protocol, nil
}

func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = 15 * time.Second
	}
	return time.NewTicker(d)
}

type byteReader struct {
	data []byte
	pos  int
}

func byteReaderOf(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (b *byteReader) ReadByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}
