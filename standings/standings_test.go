package standings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oacdarts/tournament-engine/models"
)

func finishedMatch(p1, p2, legs1, legs2 int) models.Match {
	winner := p1
	if legs2 > legs1 {
		winner = p2
	}
	return models.Match{
		Player1ID:      &p1,
		Player2ID:      &p2,
		Status:         models.MatchFinished,
		WinnerPlayerID: &winner,
		Player1Stats:   models.SideStats{LegsWon: legs1},
		Player2Stats:   models.SideStats{LegsWon: legs2},
	}
}

func TestNoFinishedMatchesKeepsRegistrationOrder(t *testing.T) {
	players := []int{7, 3, 9, 1}
	p1, p2 := 7, 3
	ongoing := models.Match{Player1ID: &p1, Player2ID: &p2, Status: models.MatchOngoing}

	rows := Calculate(players, []models.Match{ongoing})
	require.Len(t, rows, 4)
	for i, want := range players {
		assert.Equal(t, want, rows[i].PlayerID)
		assert.Equal(t, 0, rows[i].Points)
		assert.Equal(t, i+1, rows[i].Rank)
	}
}

func TestUndefeatedPlayerRanksFirst(t *testing.T) {
	players := []int{1, 2, 3, 4}
	matches := []models.Match{
		finishedMatch(1, 2, 3, 1),
		finishedMatch(1, 3, 3, 2),
		finishedMatch(1, 4, 3, 0),
		finishedMatch(2, 3, 3, 2),
		finishedMatch(2, 4, 1, 3),
		finishedMatch(3, 4, 3, 2),
	}
	rows := Calculate(players, matches)
	assert.Equal(t, 1, rows[0].PlayerID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 6, rows[0].Points)
}

func TestTieBreakOrder(t *testing.T) {
	players := []int{1, 2, 3}
	// Everyone wins once: 1 beats 2 big, 2 beats 3, 3 beats 1 narrowly.
	matches := []models.Match{
		finishedMatch(1, 2, 3, 0),
		finishedMatch(2, 3, 3, 2),
		finishedMatch(3, 1, 3, 2),
	}
	rows := Calculate(players, matches)
	// All on 2 points. Leg differences: p1 +2, p3 0, p2 -2.
	assert.Equal(t, []int{1, 3, 2}, []int{rows[0].PlayerID, rows[1].PlayerID, rows[2].PlayerID})
	assert.Equal(t, 2, rows[0].LegDifference)
	assert.Equal(t, 0, rows[1].LegDifference)
	assert.Equal(t, -2, rows[2].LegDifference)
}

func TestFullTieFallsBackToRegistrationOrder(t *testing.T) {
	players := []int{42, 17}
	rows := Calculate(players, nil)
	assert.Equal(t, 42, rows[0].PlayerID)
	assert.Equal(t, 17, rows[1].PlayerID)
}
