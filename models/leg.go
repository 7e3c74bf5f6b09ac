package models

import "time"

// Visit is one trip to the oche: up to three darts.
type Visit struct {
	Score int `json:"score"`
	Darts int `json:"darts"`
	// DartsAtDouble counts darts of this visit thrown at a double,
	// whether or not they hit. Feeds the checkout rate.
	DartsAtDouble int `json:"darts_at_double,omitempty"`
}

// MaximumScore is the highest score a single visit can produce.
const MaximumScore = 180

// Leg is one complete sub-game of a match. Legs are append-only: once
// recorded they are never mutated, the match aggregates are derived from them.
type Leg struct {
	ID            int       `json:"id" db:"id"`
	MatchID       int       `json:"match_id" db:"match_id"`
	Number        int       `json:"number" db:"number"`
	WinnerSide    Side      `json:"winner_side" db:"winner_side"`
	CheckoutScore int       `json:"checkout_score" db:"checkout_score"`
	CheckoutDarts int       `json:"checkout_darts" db:"checkout_darts"`
	Player1Visits []Visit   `json:"player1_visits" db:"player1_visits"`
	Player2Visits []Visit   `json:"player2_visits" db:"player2_visits"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// VisitsFor returns the visit list of the given side.
func (l *Leg) VisitsFor(side Side) []Visit {
	if side == SideOne {
		return l.Player1Visits
	}
	return l.Player2Visits
}

// MaximumIndexes lists the indexes of the side's 180 visits.
func (l *Leg) MaximumIndexes(side Side) []int {
	var idx []int
	for i, v := range l.VisitsFor(side) {
		if v.Score >= MaximumScore {
			idx = append(idx, i)
		}
	}
	return idx
}
