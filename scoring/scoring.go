// Package scoring implements the match/leg state machine. It operates on
// in-memory match values only; persistence and retries live in the service
// layer.
package scoring

import (
	"errors"
	"fmt"

	"github.com/oacdarts/tournament-engine/models"
)

var (
	// ErrInvalidTransition is the root of every state-machine violation;
	// callers match on it with errors.Is.
	ErrInvalidTransition = errors.New("invalid match state transition")

	ErrMatchNotPending  = fmt.Errorf("%w: match is not pending", ErrInvalidTransition)
	ErrMatchNotOngoing  = fmt.Errorf("%w: match is not ongoing", ErrInvalidTransition)
	ErrSlotsUnresolved  = fmt.Errorf("%w: both player slots must be resolved", ErrInvalidTransition)
	ErrFinishedConflict = fmt.Errorf("%w: finished match reported a different result", ErrInvalidTransition)

	// ErrInvalidLeg covers malformed throw data; it is a validation error,
	// not a transition error.
	ErrInvalidLeg = errors.New("invalid leg data")
)

// Start moves a pending match to ongoing. Legs-to-win and the starting side
// are fixed here and immutable afterwards.
func Start(m *models.Match, legsToWin int, startingSide models.Side) error {
	if m.Status != models.MatchPending {
		return fmt.Errorf("%w (status %s)", ErrMatchNotPending, m.Status)
	}
	if !m.SlotsResolved() {
		return ErrSlotsUnresolved
	}
	if legsToWin < 1 {
		return fmt.Errorf("%w: legs to win must be at least 1, got %d", ErrInvalidLeg, legsToWin)
	}
	if !startingSide.Valid() {
		return fmt.Errorf("%w: unknown starting side %d", ErrInvalidLeg, startingSide)
	}
	m.LegsToWin = legsToWin
	m.StartingSide = &startingSide
	m.Status = models.MatchOngoing
	return nil
}

// LegInput is one completed leg as reported by the scorer: the full visit
// sequence of both sides, the winner, and how many darts the winning visit took.
type LegInput struct {
	WinnerSide    models.Side
	Player1Visits []models.Visit
	Player2Visits []models.Visit
	WinningDarts  int
}

// RecordLeg appends a leg to an ongoing match and recomputes the running
// aggregates of both sides. The match finishes automatically the moment
// either side reaches the configured legs-to-win.
func RecordLeg(m *models.Match, in LegInput) (*models.Leg, error) {
	if m.Status != models.MatchOngoing {
		if m.Status == models.MatchFinished {
			return nil, fmt.Errorf("%w: match already finished", ErrMatchNotOngoing)
		}
		return nil, fmt.Errorf("%w (status %s)", ErrMatchNotOngoing, m.Status)
	}
	if err := validateLeg(in); err != nil {
		return nil, err
	}

	winnerVisits := in.Player1Visits
	if in.WinnerSide == models.SideTwo {
		winnerVisits = in.Player2Visits
	}
	checkout := winnerVisits[len(winnerVisits)-1].Score

	leg := &models.Leg{
		MatchID:       m.ID,
		Number:        len(m.Legs) + 1,
		WinnerSide:    in.WinnerSide,
		CheckoutScore: checkout,
		CheckoutDarts: in.WinningDarts,
		Player1Visits: in.Player1Visits,
		Player2Visits: in.Player2Visits,
	}
	m.Legs = append(m.Legs, *leg)

	applyLeg(m.SideStatsFor(models.SideOne), in.Player1Visits, in.WinnerSide == models.SideOne, checkout)
	applyLeg(m.SideStatsFor(models.SideTwo), in.Player2Visits, in.WinnerSide == models.SideTwo, checkout)

	if m.SideStatsFor(in.WinnerSide).LegsWon >= m.LegsToWin {
		finish(m, in.WinnerSide, false)
	}
	return leg, nil
}

// ForceFinish is the manual correction/walkover path. It is idempotent: forcing
// the same result onto an already finished match is a no-op, a different
// result is rejected.
func ForceFinish(m *models.Match, legsWonP1, legsWonP2 int, winner models.Side) error {
	if !winner.Valid() {
		return fmt.Errorf("%w: unknown winner side %d", ErrInvalidLeg, winner)
	}
	if legsWonP1 < 0 || legsWonP2 < 0 {
		return fmt.Errorf("%w: negative leg counts", ErrInvalidLeg)
	}
	if m.Status == models.MatchFinished {
		winnerID := m.PlayerIDFor(winner)
		if m.Player1Stats.LegsWon == legsWonP1 && m.Player2Stats.LegsWon == legsWonP2 &&
			winnerID != nil && m.WinnerPlayerID != nil && *winnerID == *m.WinnerPlayerID {
			return nil
		}
		return ErrFinishedConflict
	}
	walkover := m.Status == models.MatchPending
	m.Player1Stats.LegsWon = legsWonP1
	m.Player2Stats.LegsWon = legsWonP2
	finish(m, winner, walkover)
	return nil
}

func finish(m *models.Match, winner models.Side, walkover bool) {
	m.Status = models.MatchFinished
	m.Walkover = walkover
	if id := m.PlayerIDFor(winner); id != nil {
		winnerID := *id
		m.WinnerPlayerID = &winnerID
	}
}

func applyLeg(s *models.SideStats, visits []models.Visit, won bool, checkout int) {
	for _, v := range visits {
		s.TotalScore += v.Score
		s.DartsThrown += v.Darts
		s.DoubleAttempts += v.DartsAtDouble
		if v.Score >= models.MaximumScore {
			s.Maximums++
		}
	}
	if won {
		s.LegsWon++
		s.Checkouts++
		if checkout > s.HighestCheckout {
			s.HighestCheckout = checkout
		}
	}
}

func validateLeg(in LegInput) error {
	if !in.WinnerSide.Valid() {
		return fmt.Errorf("%w: unknown winner side %d", ErrInvalidLeg, in.WinnerSide)
	}
	if in.WinningDarts < 1 || in.WinningDarts > 3 {
		return fmt.Errorf("%w: winning dart count must be 1..3, got %d", ErrInvalidLeg, in.WinningDarts)
	}
	winnerVisits := in.Player1Visits
	if in.WinnerSide == models.SideTwo {
		winnerVisits = in.Player2Visits
	}
	if len(winnerVisits) == 0 {
		return fmt.Errorf("%w: winning side recorded no visits", ErrInvalidLeg)
	}
	for side, visits := range map[models.Side][]models.Visit{
		models.SideOne: in.Player1Visits,
		models.SideTwo: in.Player2Visits,
	} {
		for i, v := range visits {
			if v.Score < 0 || v.Score > models.MaximumScore {
				return fmt.Errorf("%w: side %d visit %d score %d out of range", ErrInvalidLeg, side, i, v.Score)
			}
			if v.Darts < 1 || v.Darts > 3 {
				return fmt.Errorf("%w: side %d visit %d dart count %d out of range", ErrInvalidLeg, side, i, v.Darts)
			}
			if v.DartsAtDouble < 0 || v.DartsAtDouble > v.Darts {
				return fmt.Errorf("%w: side %d visit %d darts at double %d out of range", ErrInvalidLeg, side, i, v.DartsAtDouble)
			}
		}
	}
	return nil
}
