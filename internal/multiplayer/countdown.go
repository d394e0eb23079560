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

package multiplayer

import (
	"context"
	"time"
)

// countdown is a cancelable task that invokes a continuation on expiry,
// grounded on the teacher's subscription-manager cancel pattern
// (context.WithCancel + a timer goroutine) rather than a bespoke timer
// wheel.
type countdown struct {
	kind      CountdownKind
	exclusive bool
	cancel    context.CancelFunc
}

// startCountdown cancels any existing countdown of the same kind (spec
// §4.3 "starting a new exclusive countdown of the same kind cancels the
// previous"), then starts a new one that calls onExpire after duration
// unless canceled first.
func (r *Room) startCountdown(kind CountdownKind, exclusive bool, duration time.Duration, onExpire func()) {
	r.stopCountdown(kind)

	ctx, cancel := context.WithCancel(context.Background())
	r.countdowns[kind] = &countdown{kind: kind, exclusive: exclusive, cancel: cancel}

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.mu.Lock()
			delete(r.countdowns, kind)
			r.mu.Unlock()
			onExpire()
		}
	}()
}

// stopCountdown cancels the named countdown if present. Exclusive and
// auto-start-driven countdowns are protected at the RPC layer (spec §4.3
// "unless it is exclusive or auto-start-driven").
func (r *Room) stopCountdown(kind CountdownKind) {
	if c, ok := r.countdowns[kind]; ok {
		c.cancel()
		delete(r.countdowns, kind)
	}
}

func (r *Room) stopAllCountdowns() {
	for kind := range r.countdowns {
		r.stopCountdown(kind)
	}
}
