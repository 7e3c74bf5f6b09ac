package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oacdarts/tournament-engine/models"
)

func intPtr(v int) *int { return &v }

func newTestMatch() *models.Match {
	return &models.Match{
		ID:        1,
		Player1ID: intPtr(10),
		Player2ID: intPtr(20),
		Status:    models.MatchPending,
	}
}

func simpleLeg(winner models.Side) LegInput {
	// Winner finishes in 15 darts (5 visits), loser throws 5 visits too.
	winning := []models.Visit{
		{Score: 140, Darts: 3},
		{Score: 100, Darts: 3},
		{Score: 81, Darts: 3},
		{Score: 100, Darts: 3},
		{Score: 80, Darts: 3, DartsAtDouble: 1},
	}
	losing := []models.Visit{
		{Score: 60, Darts: 3},
		{Score: 45, Darts: 3},
		{Score: 100, Darts: 3},
		{Score: 60, Darts: 3},
		{Score: 41, Darts: 3},
	}
	in := LegInput{WinnerSide: winner, WinningDarts: 3}
	if winner == models.SideOne {
		in.Player1Visits, in.Player2Visits = winning, losing
	} else {
		in.Player1Visits, in.Player2Visits = losing, winning
	}
	return in
}

func TestStartRequiresPendingAndResolvedSlots(t *testing.T) {
	m := newTestMatch()
	m.Player2ID = nil
	err := Start(m, 3, models.SideOne)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	m = newTestMatch()
	require.NoError(t, Start(m, 3, models.SideOne))
	assert.Equal(t, models.MatchOngoing, m.Status)
	assert.Equal(t, 3, m.LegsToWin)

	// Starting twice is a transition violation.
	err = Start(m, 3, models.SideOne)
	assert.ErrorIs(t, err, ErrMatchNotPending)
}

func TestRecordLegOnPendingOrFinishedFails(t *testing.T) {
	m := newTestMatch()
	_, err := RecordLeg(m, simpleLeg(models.SideOne))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, Start(m, 1, models.SideOne))
	_, err = RecordLeg(m, simpleLeg(models.SideOne))
	require.NoError(t, err)
	require.Equal(t, models.MatchFinished, m.Status)

	_, err = RecordLeg(m, simpleLeg(models.SideOne))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMatchFinishesExactlyAtLegsToWin(t *testing.T) {
	m := newTestMatch()
	require.NoError(t, Start(m, 2, models.SideOne))

	_, err := RecordLeg(m, simpleLeg(models.SideOne))
	require.NoError(t, err)
	assert.Equal(t, models.MatchOngoing, m.Status)

	_, err = RecordLeg(m, simpleLeg(models.SideTwo))
	require.NoError(t, err)
	assert.Equal(t, models.MatchOngoing, m.Status)

	_, err = RecordLeg(m, simpleLeg(models.SideOne))
	require.NoError(t, err)
	assert.Equal(t, models.MatchFinished, m.Status)
	require.NotNil(t, m.WinnerPlayerID)
	assert.Equal(t, 10, *m.WinnerPlayerID)
	assert.False(t, m.Walkover)
}

func TestAggregatesAccumulate(t *testing.T) {
	m := newTestMatch()
	require.NoError(t, Start(m, 3, models.SideOne))

	in := LegInput{
		WinnerSide:   models.SideOne,
		WinningDarts: 2,
		Player1Visits: []models.Visit{
			{Score: 180, Darts: 3},
			{Score: 180, Darts: 3},
			{Score: 101, Darts: 3},
			{Score: 40, Darts: 2, DartsAtDouble: 2},
		},
		Player2Visits: []models.Visit{
			{Score: 60, Darts: 3},
			{Score: 100, Darts: 3},
			{Score: 85, Darts: 3, DartsAtDouble: 1},
		},
	}
	leg, err := RecordLeg(m, in)
	require.NoError(t, err)

	s1 := m.Player1Stats
	assert.Equal(t, 1, s1.LegsWon)
	assert.Equal(t, 501, s1.TotalScore)
	assert.Equal(t, 11, s1.DartsThrown)
	assert.Equal(t, 2, s1.Maximums)
	assert.Equal(t, 40, s1.HighestCheckout)
	assert.Equal(t, 1, s1.Checkouts)
	assert.Equal(t, 2, s1.DoubleAttempts)
	assert.InDelta(t, 501.0/11.0*3.0, s1.Average(), 1e-9)
	assert.InDelta(t, 0.5, s1.CheckoutRate(), 1e-9)

	s2 := m.Player2Stats
	assert.Equal(t, 0, s2.LegsWon)
	assert.Equal(t, 0, s2.Checkouts)
	assert.Equal(t, 245, s2.TotalScore)

	assert.Equal(t, 40, leg.CheckoutScore)
	assert.Equal(t, 2, leg.CheckoutDarts)
	assert.Equal(t, []int{0, 1}, leg.MaximumIndexes(models.SideOne))
}

func TestForceFinishIdempotent(t *testing.T) {
	m := newTestMatch()
	require.NoError(t, Start(m, 3, models.SideOne))

	require.NoError(t, ForceFinish(m, 3, 1, models.SideOne))
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.False(t, m.Walkover)

	// Same result again: no-op.
	require.NoError(t, ForceFinish(m, 3, 1, models.SideOne))

	// Conflicting result: rejected.
	err := ForceFinish(m, 3, 2, models.SideOne)
	assert.ErrorIs(t, err, ErrFinishedConflict)
}

func TestForceFinishPendingIsWalkover(t *testing.T) {
	m := newTestMatch()
	require.NoError(t, ForceFinish(m, 0, 0, models.SideTwo))
	assert.Equal(t, models.MatchFinished, m.Status)
	assert.True(t, m.Walkover)
	require.NotNil(t, m.WinnerPlayerID)
	assert.Equal(t, 20, *m.WinnerPlayerID)
}

func TestRecordLegValidation(t *testing.T) {
	m := newTestMatch()
	require.NoError(t, Start(m, 3, models.SideOne))

	in := simpleLeg(models.SideOne)
	in.WinningDarts = 4
	_, err := RecordLeg(m, in)
	assert.ErrorIs(t, err, ErrInvalidLeg)

	in = simpleLeg(models.SideOne)
	in.Player1Visits[0].Score = 181
	_, err = RecordLeg(m, in)
	assert.ErrorIs(t, err, ErrInvalidLeg)

	in = simpleLeg(models.SideOne)
	in.WinnerSide = models.Side(3)
	_, err = RecordLeg(m, in)
	assert.ErrorIs(t, err, ErrInvalidLeg)
}
