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

package pubsub

import (
	"sync"

	"github.com/USA-RedDragon/DMRHub/internal/config"
)

func makeInMemoryPubSub(_ *config.Config) (PubSub, error) {
	return &inMemoryPubSub{
		subs: make(map[string][]*inMemorySubscription),
	}, nil
}

type inMemoryPubSub struct {
	mu   sync.Mutex
	subs map[string][]*inMemorySubscription
}

func (ps *inMemoryPubSub) Publish(topic string, message []byte) error {
	ps.mu.Lock()
	targets := append([]*inMemorySubscription(nil), ps.subs[topic]...)
	ps.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- message:
		default:
			// Slow subscriber drops the message rather than blocking the publisher.
		}
	}
	return nil
}

func (ps *inMemoryPubSub) Subscribe(topic string) Subscription {
	sub := &inMemorySubscription{
		ch:    make(chan []byte, 64),
		topic: topic,
		ps:    ps,
	}
	ps.mu.Lock()
	ps.subs[topic] = append(ps.subs[topic], sub)
	ps.mu.Unlock()
	return sub
}

func (ps *inMemoryPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, subs := range ps.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	ps.subs = make(map[string][]*inMemorySubscription)
	return nil
}

type inMemorySubscription struct {
	ch    chan []byte
	topic string
	ps    *inMemoryPubSub
}

func (s *inMemorySubscription) Unsubscribe() error {
	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()
	remaining := s.ps.subs[s.topic][:0]
	for _, sub := range s.ps.subs[s.topic] {
		if sub != s {
			remaining = append(remaining, sub)
		}
	}
	s.ps.subs[s.topic] = remaining
	close(s.ch)
	return nil
}

func (s *inMemorySubscription) Close() error {
	return s.Unsubscribe()
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
