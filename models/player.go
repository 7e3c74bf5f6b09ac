package models

import (
	"encoding/json"
	"time"
)

// PlayerStatus is the lifecycle status of a player within one tournament.
type PlayerStatus string

const (
	PlayerApplied    PlayerStatus = "applied"
	PlayerConfirmed  PlayerStatus = "confirmed"
	PlayerCheckedIn  PlayerStatus = "checked_in"
	PlayerEliminated PlayerStatus = "eliminated"
	PlayerWinner     PlayerStatus = "winner"
)

// PlayerStats is the per-tournament stat snapshot frozen at tournament finish,
// and the shape of the aggregate carried on rating history entries.
type PlayerStats struct {
	LegsWon         int     `json:"legs_won"`
	LegsLost        int     `json:"legs_lost"`
	MatchesWon      int     `json:"matches_won"`
	MatchesLost     int     `json:"matches_lost"`
	Average         float64 `json:"average"`
	Maximums        int     `json:"maximums"` // 180s
	HighestCheckout int     `json:"highest_checkout"`
}

type TournamentPlayer struct {
	ID           int          `json:"id" db:"id"`
	TournamentID int          `json:"tournament_id" db:"tournament_id"`
	PlayerID     int          `json:"player_id" db:"player_id"`
	Status       PlayerStatus `json:"status" db:"status"`
	// Seed is the registration order; it is the stable tie-break of last
	// resort everywhere ranking has to be deterministic.
	Seed           int    `json:"seed" db:"seed"`
	GroupID        *int   `json:"group_id,omitempty" db:"group_id"`
	GroupRank      *int   `json:"group_rank,omitempty" db:"group_rank"`
	FinalPlacement *int   `json:"final_placement,omitempty" db:"final_placement"`
	StatsJSON      string `json:"-" db:"stats"`

	Stats     *PlayerStats `json:"stats,omitempty" db:"-"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// ParseStats unmarshals the frozen stats column, if any.
func (p *TournamentPlayer) ParseStats() (*PlayerStats, error) {
	if p.Stats != nil {
		return p.Stats, nil
	}
	if p.StatsJSON == "" {
		return nil, nil
	}
	stats := &PlayerStats{}
	if err := json.Unmarshal([]byte(p.StatsJSON), stats); err != nil {
		return nil, err
	}
	p.Stats = stats
	return stats, nil
}
