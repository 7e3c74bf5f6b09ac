package models

import (
	"encoding/json"
	"time"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	StatusPending    TournamentStatus = "pending"
	StatusGroupStage TournamentStatus = "group_stage"
	StatusKnockout   TournamentStatus = "knockout"
	StatusFinished   TournamentStatus = "finished"
)

// TournamentConfig holds the format parameters of a single tournament.
// These are deliberately configuration, not constants: different events run
// with different group counts, qualifier rules and field sizes.
type TournamentConfig struct {
	MaxPlayers         int  `json:"max_players"`
	MinPlayers         int  `json:"min_players"`
	StartingScore      int  `json:"starting_score"` // e.g. 501
	BoardCount         int  `json:"board_count"`
	GroupCount         int  `json:"group_count"`
	GroupLegsToWin     int  `json:"group_legs_to_win"`
	KnockoutLegsToWin  int  `json:"knockout_legs_to_win"`
	QualifiersPerGroup int  `json:"qualifiers_per_group"` // rank 1 is seeded, ranks 2..N are pooled
	Verified           bool `json:"verified"`             // organizer-certified, feeds verified MMR
	Sandbox            bool `json:"sandbox"`              // practice event, never feeds ratings
	VerifiedMinField   int  `json:"verified_min_field"`   // minimum participants for a verified-MMR update
}

// DefaultVerifiedMinField applies when a verified tournament does not set its own threshold.
const DefaultVerifiedMinField = 16

type Tournament struct {
	ID         int              `json:"id" db:"id"`
	ClubID     int              `json:"club_id" db:"club_id"`
	Name       string           `json:"name" db:"name"`
	Status     TournamentStatus `json:"status" db:"status"`
	Canceled   bool             `json:"canceled" db:"canceled"`
	ConfigJSON string           `json:"-" db:"config"`
	StartDate  time.Time        `json:"start_date" db:"start_date"`
	ArchivedAt *time.Time       `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`

	// Populated by services, not mapped directly.
	Config  *TournamentConfig  `json:"config,omitempty" db:"-"`
	Groups  []Group            `json:"groups,omitempty" db:"-"`
	Players []TournamentPlayer `json:"players,omitempty" db:"-"`
	Matches []Match            `json:"matches,omitempty" db:"-"`
}

// ParseConfig unmarshals the raw config column into t.Config.
func (t *Tournament) ParseConfig() (*TournamentConfig, error) {
	if t.Config != nil {
		return t.Config, nil
	}
	cfg := &TournamentConfig{}
	if t.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(t.ConfigJSON), cfg); err != nil {
			return nil, err
		}
	}
	if cfg.VerifiedMinField <= 0 {
		cfg.VerifiedMinField = DefaultVerifiedMinField
	}
	t.Config = cfg
	return cfg, nil
}

// RatingEligible reports whether results of this tournament feed the rating engine at all.
func (t *Tournament) RatingEligible() bool {
	return !t.Canceled && t.Status == StatusFinished
}

type Group struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`
	Number       int `json:"number" db:"number"`
	BoardNumber  int `json:"board_number" db:"board_number"`

	// Populated by services.
	PlayerIDs []int   `json:"player_ids,omitempty" db:"-"`
	Matches   []Match `json:"matches,omitempty" db:"-"`
}
