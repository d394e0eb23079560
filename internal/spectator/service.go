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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"gorm.io/gorm"
)

const reconcilePollInterval = time.Second

func watchGroup(userID uint) string {
	return fmt.Sprintf("watch:%d", userID)
}

// Service is the spectator hub's Lifecycle and method dispatch target,
// tracking every client currently in a play session and fanning its
// frames out to watchers.
type Service struct {
	db  *gorm.DB
	h   *hub.Hub
	cfg *config.Config

	mu       sync.Mutex
	sessions map[uint]*session
}

func NewService(db *gorm.DB, h *hub.Hub, cfg *config.Config) *Service {
	s := &Service{db: db, h: h, cfg: cfg, sessions: make(map[uint]*session)}
	h.Handle("BeginPlaySession", s.handleBeginPlaySession)
	h.Handle("SendFrameData", s.handleSendFrameData)
	h.Handle("EndPlaySession", s.handleEndPlaySession)
	h.Handle("StartWatchingUser", s.handleStartWatching)
	h.Handle("EndWatchingUser", s.handleEndWatching)
	return s
}

func (s *Service) OnConnect(context.Context, *hub.Client) {}

// OnDisconnect drops any in-flight play session; a disconnect mid-play
// never blocks on score reconciliation, matching spec §4.2's "reconnect
// kicks the predecessor; its state is cleaned" rule.
func (s *Service) OnDisconnect(client *hub.Client, _ string) {
	s.mu.Lock()
	delete(s.sessions, client.UserID)
	s.mu.Unlock()
}

func (s *Service) handleBeginPlaySession(_ context.Context, client *hub.Client, args []any) (any, error) {
	token, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	state, err := decodeState(args, 1)
	if err != nil {
		return nil, err
	}

	sess := &session{userID: client.UserID, scoreToken: token, state: state}
	s.mu.Lock()
	s.sessions[client.UserID] = sess
	s.mu.Unlock()

	s.h.Broadcast(watchGroup(client.UserID), "UserBeganPlaying", client.UserID, state)
	return nil, nil
}

func (s *Service) handleSendFrameData(_ context.Context, client *hub.Client, args []any) (any, error) {
	bundle, err := decodeBundle(args, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[client.UserID]
	if ok {
		sess.applyBundle(bundle)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no active play session for user %d", client.UserID)
	}

	s.h.Broadcast(watchGroup(client.UserID), "UserSentFrames", client.UserID, bundle)
	return nil, nil
}

// handleEndPlaySession tears the session down, kicks off score
// reconciliation when eligible, and broadcasts the terminal state to
// watchers (spec §4.4 "EndPlaySession").
func (s *Service) handleEndPlaySession(_ context.Context, client *hub.Client, args []any) (any, error) {
	state, err := decodeState(args, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[client.UserID]
	if ok {
		sess.state = state
		delete(s.sessions, client.UserID)
	}
	s.mu.Unlock()

	if ok {
		beatmap, berr := models.FindBeatmap(s.db, sess.state.BeatmapID)
		if berr == nil && beatmap.RankedEligible() && sess.scorableHit {
			go s.reconcileScore(client, sess, beatmap)
		}
	}

	s.h.Broadcast(watchGroup(client.UserID), "UserFinishedPlaying", client.UserID, state)
	return nil, nil
}

// reconcileScore polls score_tokens for up to cfg.Hub.ScoreReconcileMax
// for the external score-processing subsystem to commit a score id, then
// assembles and persists the replay.
func (s *Service) reconcileScore(client *hub.Client, sess *session, beatmap models.Beatmap) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Hub.ScoreReconcileMax)
	defer cancel()

	ticker := time.NewTicker(reconcilePollInterval)
	defer ticker.Stop()

	for {
		token, err := models.FindScoreToken(s.db, sess.scoreToken)
		if err == nil && token.ScoreID != nil {
			s.finishReplay(client, sess, beatmap, *token.ScoreID)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) finishReplay(client *hub.Client, sess *session, beatmap models.Beatmap, scoreID uint) {
	score, err := models.FindScore(s.db, scoreID)
	if err != nil {
		slog.Warn("spectator: committed score vanished before replay assembly", "score_id", scoreID, "error", err)
		return
	}
	user, err := models.FindUserByID(s.db, client.UserID)
	if err != nil {
		return
	}

	blob, err := AssembleReplay(sess, user, beatmap, score, time.Now())
	if err != nil {
		slog.Error("spectator: failed to assemble replay", "error", err, "score_id", scoreID)
		return
	}

	if err := os.MkdirAll(s.cfg.Replay.Directory, 0o755); err != nil {
		slog.Error("spectator: failed to create replay directory", "error", err)
		return
	}
	path := filepath.Join(s.cfg.Replay.Directory, fmt.Sprintf("%d.osr", scoreID))
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		slog.Error("spectator: failed to write replay", "error", err)
		return
	}
	if err := models.AttachReplay(s.db, scoreID, path); err != nil {
		slog.Error("spectator: failed to attach replay to score", "error", err)
		return
	}

	_ = client.CallNoBlock("UserScoreProcessed", client.UserID, scoreID)
}

// handleStartWatching joins the caller to the target's watch group,
// replays the target's current state if it is mid-play, and notifies the
// target of the new watcher (spec §4.4 "StartWatchingUser").
func (s *Service) handleStartWatching(_ context.Context, client *hub.Client, args []any) (any, error) {
	targetID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	s.h.JoinGroup(watchGroup(targetID), client)

	s.mu.Lock()
	sess, playing := s.sessions[targetID]
	var state SpectatorState
	if playing {
		state = sess.state
	}
	s.mu.Unlock()
	if playing {
		_ = client.CallNoBlock("UserBeganPlaying", targetID, state)
	}

	if target, ok := s.h.ClientByUserID(targetID); ok {
		name := ""
		if watcher, werr := models.FindUserByID(s.db, client.UserID); werr == nil {
			name = watcher.Username
		}
		_ = target.CallNoBlock("UserStartedWatching", []any{[]any{client.UserID, name}})
	}
	return nil, nil
}

func (s *Service) handleEndWatching(_ context.Context, client *hub.Client, args []any) (any, error) {
	targetID, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	s.h.LeaveGroup(watchGroup(targetID), client)
	if target, ok := s.h.ClientByUserID(targetID); ok {
		_ = target.CallNoBlock("UserEndedWatching", client.UserID)
	}
	return nil, nil
}
