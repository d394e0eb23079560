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

// Package wire defines the hub RPC packet shapes and the two codecs
// (MessagePack, JSON) that serialize them over a WebSocket connection.
package wire

// Kind tags a Packet's role on the wire.
type Kind int

const (
	KindInvocation Kind = iota + 1
	KindCompletion
	KindPing
	KindClose
)

// Packet is the union of everything that can cross the hub wire. Only the
// fields relevant to Kind are populated.
type Packet struct {
	Kind Kind `json:"kind" msgpack:"0"`

	// Invocation
	InvocationID *int64        `json:"invocationId,omitempty" msgpack:"1"`
	Target       string        `json:"target,omitempty" msgpack:"2"`
	Arguments    []any         `json:"arguments,omitempty" msgpack:"3"`
	StreamIDs    []string      `json:"streamIds,omitempty" msgpack:"4"`

	// Completion
	Error  string `json:"error,omitempty" msgpack:"5"`
	Result any    `json:"result,omitempty" msgpack:"6"`

	// Close
	AllowReconnect bool `json:"allowReconnect,omitempty" msgpack:"7"`
}

// Handshake is the first JSON-or-msgpack-agnostic exchange on a new
// WebSocket connection, always encoded as plain JSON regardless of the
// negotiated protocol, record-separator terminated.
type Handshake struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse is empty on success; Error is set on rejection.
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// RecordSeparator terminates every JSON-framed packet (spec §4.2).
const RecordSeparator = 0x1E

// ProtocolMessagePack and ProtocolJSON name the two codecs a client may
// request during handshake.
const (
	ProtocolMessagePack = "messagepack"
	ProtocolJSON        = "json"
)
