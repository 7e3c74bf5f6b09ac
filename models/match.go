package models

import "time"

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchOngoing  MatchStatus = "ongoing"
	MatchFinished MatchStatus = "finished"
)

// Side identifies one of the two slots of a match. The numeric values double
// as the winner_to_slot column of the bracket links.
type Side int

const (
	SideOne Side = 1
	SideTwo Side = 2
)

func (s Side) Valid() bool { return s == SideOne || s == SideTwo }

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideOne {
		return SideTwo
	}
	return SideOne
}

// SideStats are the running aggregates for one side of a match. They are
// derived from the recorded legs, never set directly.
type SideStats struct {
	LegsWon         int `json:"legs_won"`
	TotalScore      int `json:"total_score"`
	DartsThrown     int `json:"darts_thrown"`
	DoubleAttempts  int `json:"double_attempts"`
	Checkouts       int `json:"checkouts"`
	HighestCheckout int `json:"highest_checkout"`
	Maximums        int `json:"maximums"` // visits scoring 180
}

// Average is the classic 3-dart average: (total score / darts thrown) * 3.
func (s SideStats) Average() float64 {
	if s.DartsThrown == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.DartsThrown) * 3
}

// CheckoutRate is checkouts over darts thrown at a double.
func (s SideStats) CheckoutRate() float64 {
	if s.DoubleAttempts == 0 {
		return 0
	}
	return float64(s.Checkouts) / float64(s.DoubleAttempts)
}

type Match struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	GroupID      *int `json:"group_id,omitempty" db:"group_id"`

	// Knockout bracket placement; nil for group-stage matches.
	Round        *int    `json:"round,omitempty" db:"round"`
	OrderInRound *int    `json:"order_in_round,omitempty" db:"order_in_round"`
	BracketUID   *string `json:"bracket_uid,omitempty" db:"bracket_uid"`

	BoardNumber *int `json:"board_number,omitempty" db:"board_number"`

	// Player slots are nullable until a prior round resolves them.
	Player1ID *int `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID *int `json:"player2_id,omitempty" db:"player2_id"`

	LegsToWin    int   `json:"legs_to_win" db:"legs_to_win"`
	StartingSide *Side `json:"starting_side,omitempty" db:"starting_side"`

	Status         MatchStatus `json:"status" db:"status"`
	WinnerPlayerID *int        `json:"winner_player_id,omitempty" db:"winner_player_id"`
	Walkover       bool        `json:"walkover" db:"walkover"`

	// Bracket link: where the winner of this match is propagated to.
	NextMatchID  *int `json:"next_match_id,omitempty" db:"next_match_id"`
	WinnerToSlot *int `json:"winner_to_slot,omitempty" db:"winner_to_slot"`

	Player1Stats SideStats `json:"player1_stats" db:"player1_stats"`
	Player2Stats SideStats `json:"player2_stats" db:"player2_stats"`

	// Version backs the optimistic write lock on scoring updates.
	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Legs []Leg `json:"legs,omitempty" db:"-"`
}

// SideStatsFor returns a pointer to the aggregates of the given side.
func (m *Match) SideStatsFor(side Side) *SideStats {
	if side == SideOne {
		return &m.Player1Stats
	}
	return &m.Player2Stats
}

// PlayerIDFor returns the player occupying the given slot, if resolved.
func (m *Match) PlayerIDFor(side Side) *int {
	if side == SideOne {
		return m.Player1ID
	}
	return m.Player2ID
}

// SlotsResolved reports whether both player slots are populated.
func (m *Match) SlotsResolved() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

// KnockoutRound is a derived view of one bracket round, assembled from the
// persisted matches for presentation.
type KnockoutRound struct {
	Round   int     `json:"round"`
	Matches []Match `json:"matches"`
}
