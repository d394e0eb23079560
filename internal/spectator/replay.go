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

package spectator

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/ulikunitz/xz/lzma"
)

const replayFormatVersion = 20251001

// sentinelFrame terminates the legacy frame stream (spec §4.4).
const sentinelFrame = "-12345|0|0|0"

// hitResultKeys is the fixed ordering of the six compact hit-count
// shorts the binary format reserves (spec §4.4 "compact hit counts").
var hitResultKeys = []string{"perfect", "great", "good", "ok", "meh", "miss"}

var windowsEpoch = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)

func windowsTicks(t time.Time) int64 {
	return (t.Unix()-windowsEpoch.Unix())*10_000_000 + int64(t.Nanosecond()/100)
}

// writeLEBString writes the format's string encoding: a 0x0b marker, the
// ULEB128 byte length and the UTF-8 bytes, with no terminator after them;
// "" is written as a single zero byte.
func writeLEBString(buf *bytes.Buffer, s string) {
	if s == "" {
		buf.WriteByte(0x00)
		return
	}
	buf.WriteByte(0x0b)
	writeULEB128(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeULEB128(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func lzmaCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create lzma writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write lzma stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lzma writer: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeFrameStream(frames []ReplayFrame) ([]byte, error) {
	var sb strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&sb, "%d|%g|%g|%d,", f.TimeDelta, f.X, f.Y, f.Buttons)
	}
	sb.WriteString(sentinelFrame)
	return lzmaCompress([]byte(sb.String()))
}

func hitCounts(stats map[string]int) [6]uint16 {
	var out [6]uint16
	for i, key := range hitResultKeys {
		out[i] = uint16(stats[key])
	}
	return out
}

// replayKey returns an opaque per-replay identifier embedded in the
// header, grounded on the teacher's opaque-token random-bytes pattern
// (internal/auth's opaqueToken).
func replayKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate replay key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// modsBitmask folds a mod acronym list into the i32 bitmask position the
// binary format expects. The mapping itself is an external collaborator
// (beatmap/mod metadata); unrecognized acronyms are ignored rather than
// rejected so a newly added mod never breaks replay assembly.
var modBits = map[string]int32{
	"NF": 1 << 0,
	"EZ": 1 << 1,
	"HD": 1 << 3,
	"HR": 1 << 4,
	"SD": 1 << 5,
	"DT": 1 << 6,
	"NC": 1<<6 | 1<<9,
	"HT": 1 << 8,
	"FL": 1 << 10,
	"SO": 1 << 12,
	"PF": 1<<5 | 1<<14,
}

func modsBitmask(mods []string) int32 {
	var mask int32
	for _, m := range mods {
		mask |= modBits[strings.ToUpper(m)]
	}
	return mask
}

// AssembleReplay serializes a finished play session into an .osr-style
// blob: header fields, LZMA-compressed frame stream, and an
// LZMA-compressed JSON score-info trailer (spec §4.4 "Replay
// serialization").
func AssembleReplay(sess *session, user models.User, beatmap models.Beatmap, score models.Score, playedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(byte(sess.state.RulesetID))

	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], uint32(replayFormatVersion))
	buf.Write(versionBuf[:])

	writeLEBString(&buf, beatmap.ChecksumMD5)
	writeLEBString(&buf, user.Username)

	key, err := replayKey()
	if err != nil {
		return nil, err
	}
	writeLEBString(&buf, key)

	for _, n := range hitCounts(sess.header.Statistics) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], n)
		buf.Write(b[:])
	}

	var scoreBuf [4]byte
	binary.LittleEndian.PutUint32(scoreBuf[:], uint32(score.TotalScore))
	buf.Write(scoreBuf[:])

	var comboBuf [2]byte
	binary.LittleEndian.PutUint16(comboBuf[:], uint16(score.MaxCombo))
	buf.Write(comboBuf[:])

	isPerfect := byte(0)
	if sess.header.MaxCombo > 0 && sess.header.Combo == sess.header.MaxCombo {
		isPerfect = 1
	}
	buf.WriteByte(isPerfect)

	var modsBuf [4]byte
	binary.LittleEndian.PutUint32(modsBuf[:], uint32(modsBitmask(score.Mods)))
	buf.Write(modsBuf[:])

	writeLEBString(&buf, "") // HP graph, never recorded server-side

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(windowsTicks(playedAt)))
	buf.Write(tsBuf[:])

	frameStream, err := encodeFrameStream(sess.frames)
	if err != nil {
		return nil, err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frameStream)))
	buf.Write(lenBuf[:])
	buf.Write(frameStream)

	var scoreIDBuf [8]byte
	binary.LittleEndian.PutUint64(scoreIDBuf[:], uint64(score.ID))
	buf.Write(scoreIDBuf[:])

	scoreInfoJSON, err := json.Marshal(sess.header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score info trailer: %w", err)
	}
	trailer, err := lzmaCompress(scoreInfoJSON)
	if err != nil {
		return nil, err
	}
	buf.Write(trailer)

	return buf.Bytes(), nil
}
