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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"
)

const packetArity = 8

// EncodeMessagePack serializes p as a MessagePack positional array and
// prefixes it with its byte length as a LEB128 (unsigned varint) header,
// matching encoding/binary's Uvarint representation.
func EncodeMessagePack(p *Packet) ([]byte, error) {
	var body bytes.Buffer
	w := msgp.NewWriter(&body)

	if err := w.WriteArrayHeader(packetArity); err != nil {
		return nil, fmt.Errorf("failed to write packet header: %w", err)
	}
	if err := w.WriteInt(int(p.Kind)); err != nil {
		return nil, err
	}
	if p.InvocationID != nil {
		if err := w.WriteInt64(*p.InvocationID); err != nil {
			return nil, err
		}
	} else {
		if err := w.WriteNil(); err != nil {
			return nil, err
		}
	}
	if err := w.WriteString(p.Target); err != nil {
		return nil, err
	}
	if err := writeAnyArray(w, p.Arguments); err != nil {
		return nil, err
	}
	if err := writeStringArray(w, p.StreamIDs); err != nil {
		return nil, err
	}
	if err := w.WriteString(p.Error); err != nil {
		return nil, err
	}
	if err := w.WriteIntf(p.Result); err != nil {
		return nil, err
	}
	if err := w.WriteBool(p.AllowReconnect); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush msgpack writer: %w", err)
	}

	lenPrefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenPrefix, uint64(body.Len()))
	return append(lenPrefix[:n], body.Bytes()...), nil
}

func writeAnyArray(w *msgp.Writer, items []any) error {
	if err := w.WriteArrayHeader(uint32(len(items))); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.WriteIntf(item); err != nil {
			return err
		}
	}
	return nil
}

func writeStringArray(w *msgp.Writer, items []string) error {
	if err := w.WriteArrayHeader(uint32(len(items))); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.WriteString(item); err != nil {
			return err
		}
	}
	return nil
}

// ReadMessagePack reads one LEB128-length-prefixed MessagePack packet from
// r, blocking until a full frame has arrived.
func ReadMessagePack(r io.ByteReader) (*Packet, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read packet length: %w", err)
	}

	buf := make([]byte, 0, length)
	for i := uint64(0); i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read packet body: %w", err)
		}
		buf = append(buf, b)
	}

	reader := msgp.NewReader(bytes.NewReader(buf))
	arity, err := reader.ReadArrayHeader()
	if err != nil || arity != packetArity {
		return nil, fmt.Errorf("unexpected packet arity %d: %w", arity, err)
	}

	p := &Packet{}
	kind, err := reader.ReadInt()
	if err != nil {
		return nil, err
	}
	p.Kind = Kind(kind)

	if reader.IsNil() {
		if err := reader.ReadNil(); err != nil {
			return nil, err
		}
	} else {
		id, err := reader.ReadInt64()
		if err != nil {
			return nil, err
		}
		p.InvocationID = &id
	}

	if p.Target, err = reader.ReadString(); err != nil {
		return nil, err
	}

	argc, err := reader.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	p.Arguments = make([]any, argc)
	for i := range p.Arguments {
		if p.Arguments[i], err = reader.ReadIntf(); err != nil {
			return nil, err
		}
	}

	streamc, err := reader.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	p.StreamIDs = make([]string, streamc)
	for i := range p.StreamIDs {
		if p.StreamIDs[i], err = reader.ReadString(); err != nil {
			return nil, err
		}
	}

	if p.Error, err = reader.ReadString(); err != nil {
		return nil, err
	}
	if p.Result, err = reader.ReadIntf(); err != nil {
		return nil, err
	}
	if p.AllowReconnect, err = reader.ReadBool(); err != nil {
		return nil, err
	}

	return p, nil
}
