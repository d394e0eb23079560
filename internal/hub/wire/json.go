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

package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// jsonPacket mirrors Packet with camelCase wire names and an ordinal kind,
// per spec §4.2's JSON framing rules.
type jsonPacket struct {
	Kind           int      `json:"kind"`
	InvocationID   *int64   `json:"invocationId,omitempty"`
	Target         string   `json:"target,omitempty"`
	Arguments      []any    `json:"arguments,omitempty"`
	StreamIDs      []string `json:"streamIds,omitempty"`
	Error          string   `json:"error,omitempty"`
	Result         any      `json:"result,omitempty"`
	AllowReconnect bool     `json:"allowReconnect,omitempty"`
}

// EncodeJSON renders p as a JSON object terminated by the record-separator
// byte, so a client can frame messages without a length prefix.
func EncodeJSON(p *Packet) ([]byte, error) {
	encoded, err := json.Marshal(jsonPacket{
		Kind:           int(p.Kind),
		InvocationID:   p.InvocationID,
		Target:         p.Target,
		Arguments:      p.Arguments,
		StreamIDs:      p.StreamIDs,
		Error:          p.Error,
		Result:         p.Result,
		AllowReconnect: p.AllowReconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode json packet: %w", err)
	}
	return append(encoded, RecordSeparator), nil
}

// DecodeJSON parses a single JSON frame; a trailing record separator, if
// present, is stripped here.
func DecodeJSON(frame []byte) (*Packet, error) {
	frame = bytes.TrimSuffix(frame, []byte{RecordSeparator})
	var jp jsonPacket
	if err := json.Unmarshal(frame, &jp); err != nil {
		return nil, fmt.Errorf("failed to decode json packet: %w", err)
	}
	return &Packet{
		Kind:           Kind(jp.Kind),
		InvocationID:   jp.InvocationID,
		Target:         jp.Target,
		Arguments:      jp.Arguments,
		StreamIDs:      jp.StreamIDs,
		Error:          jp.Error,
		Result:         jp.Result,
		AllowReconnect: jp.AllowReconnect,
	}, nil
}

// SplitJSONFrames splits a buffer containing one or more record-separator
// terminated frames, returning the parsed frames and any trailing partial
// bytes to prepend to the next read.
func SplitJSONFrames(buf []byte) (frames [][]byte, remainder []byte) {
	for {
		idx := bytes.IndexByte(buf, RecordSeparator)
		if idx == -1 {
			return frames, buf
		}
		frames = append(frames, buf[:idx+1])
		buf = buf[idx+1:]
	}
}
