// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "gorm.io/gorm"

// Beatmap mirrors the subset of upstream-synced beatmap metadata the
// spectator hub needs to decide ranked eligibility; fetching the metadata
// itself is an external collaborator (spec §1 non-goals).
type Beatmap struct {
	ID           uint `gorm:"primaryKey"`
	ChecksumMD5  string
	RankedStatus int // osu!-style: <=0 unranked/pending, 1 ranked, 2 approved, 4 loved
}

func (Beatmap) TableName() string {
	return "beatmaps"
}

// RankedEligible reports whether a score on this beatmap should be
// submitted for processing at all (spec §4.4 "EndPlaySession").
func (b Beatmap) RankedEligible() bool {
	return b.RankedStatus > 0
}

func FindBeatmap(db *gorm.DB, id uint) (Beatmap, error) {
	var b Beatmap
	err := db.First(&b, id).Error
	return b, err
}

// ScoreToken binds a play session to the score an external score-
// processing subsystem will eventually compute and commit. The
// spectator hub only ever reads ScoreID once it stops being nil (spec
// §4.4 "score reconciliation").
type ScoreToken struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	BeatmapID uint
	RulesetID Ruleset
	ScoreID   *uint
}

func (ScoreToken) TableName() string {
	return "score_tokens"
}

func CreateScoreToken(db *gorm.DB, token *ScoreToken) error {
	return db.Create(token).Error
}

func FindScoreToken(db *gorm.DB, id uint) (ScoreToken, error) {
	var token ScoreToken
	err := db.First(&token, id).Error
	return token, err
}

// Score is a committed, server-validated play result. Processing the raw
// play into this row is an external collaborator; the spectator hub only
// attaches the replay once a ScoreToken resolves to one.
type Score struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"index"`
	BeatmapID  uint
	RulesetID  Ruleset
	Mods       StringSlice `gorm:"type:text"`
	TotalScore uint64
	Accuracy   float64
	MaxCombo   uint
	Passed     bool
	HasReplay  bool
	ReplayPath string
}

func (Score) TableName() string {
	return "scores"
}

func FindScore(db *gorm.DB, id uint) (Score, error) {
	var score Score
	err := db.First(&score, id).Error
	return score, err
}

// AttachReplay marks a score as having a persisted replay file, set once
// the spectator hub finishes assembling and writing the .osr blob.
func AttachReplay(db *gorm.DB, scoreID uint, path string) error {
	return db.Model(&Score{}).Where("id = ?", scoreID).
		Updates(map[string]any{"has_replay": true, "replay_path": path}).Error
}
