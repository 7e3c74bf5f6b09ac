package models

import (
	"encoding/json"
	"time"
)

// RatingBaseline is the rating every player starts from, and the fixed point
// a replay rebuilds from.
const RatingBaseline = 800

// PlayerRating is the current rating record of one player. MMR tracks every
// rated tournament; VerifiedMMR only organizer-certified events meeting the
// minimum field size.
type PlayerRating struct {
	PlayerID    int       `json:"player_id" db:"player_id"`
	MMR         int       `json:"mmr" db:"mmr"`
	VerifiedMMR int       `json:"verified_mmr" db:"verified_mmr"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TournamentHistoryEntry is one row of a player's chronological tournament
// history: exactly one entry per (player, tournament) pair.
type TournamentHistoryEntry struct {
	ID           int `json:"id" db:"id"`
	PlayerID     int `json:"player_id" db:"player_id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`

	// Date is when the tournament finished; StartDate is the scheduled start.
	// Older imported records may carry only one of the two.
	Date      *time.Time `json:"date,omitempty" db:"date"`
	StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`

	Placement         int  `json:"placement" db:"placement"`
	TotalParticipants int  `json:"total_participants" db:"total_participants"`
	Verified          bool `json:"verified" db:"verified"`

	// VerifiedMinField is the threshold the tournament was configured with at
	// finish time, recorded so replays apply the same eligibility rule.
	VerifiedMinField int `json:"verified_min_field" db:"verified_min_field"`

	StatsJSON string `json:"-" db:"stats"`

	MMRDelta         int `json:"mmr_delta" db:"mmr_delta"`
	VerifiedMMRDelta int `json:"verified_mmr_delta" db:"verified_mmr_delta"`

	// SeasonYear splits history into the current and archived seasons.
	SeasonYear int `json:"season_year" db:"season_year"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Stats *PlayerStats `json:"stats,omitempty" db:"-"`
}

// ParseStats unmarshals the stats column. A nil result with nil error means
// the entry carries no stats, which replay treats as a skip-with-warning.
func (e *TournamentHistoryEntry) ParseStats() (*PlayerStats, error) {
	if e.Stats != nil {
		return e.Stats, nil
	}
	if e.StatsJSON == "" {
		return nil, nil
	}
	stats := &PlayerStats{}
	if err := json.Unmarshal([]byte(e.StatsJSON), stats); err != nil {
		return nil, err
	}
	e.Stats = stats
	return stats, nil
}

// VerifiedEligible reports whether this entry counts toward the verified
// track: a certified tournament whose field met the threshold in force when
// it finished. Imported rows without a recorded threshold use the default.
func (e *TournamentHistoryEntry) VerifiedEligible() bool {
	minField := e.VerifiedMinField
	if minField <= 0 {
		minField = DefaultVerifiedMinField
	}
	return e.Verified && e.TotalParticipants >= minField
}

// EffectiveDate resolves the date used for chronological ordering and season
// assignment: date, else start date, else nothing.
func (e *TournamentHistoryEntry) EffectiveDate() (time.Time, bool) {
	if e.Date != nil {
		return *e.Date, true
	}
	if e.StartDate != nil {
		return *e.StartDate, true
	}
	return time.Time{}, false
}
