package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oacdarts/tournament-engine/models"
)

func intPtr(v int) *int { return &v }

func TestCreateTournamentRejectsBoardShortfall(t *testing.T) {
	s := &tournamentService{}
	_, err := s.CreateTournament(context.Background(), CreateTournamentInput{
		Name: "Friday Open",
		Config: models.TournamentConfig{
			MaxPlayers:         32,
			MinPlayers:         8,
			GroupCount:         4,
			BoardCount:         2,
			GroupLegsToWin:     2,
			KnockoutLegsToWin:  3,
			QualifiersPerGroup: 2,
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "2 boards cannot host 4 groups")
}

func knockoutMatch(round, order int, p1, p2, winner int) models.Match {
	return models.Match{
		Round:          intPtr(round),
		OrderInRound:   intPtr(order),
		Player1ID:      intPtr(p1),
		Player2ID:      intPtr(p2),
		WinnerPlayerID: intPtr(winner),
		Status:         models.MatchFinished,
	}
}

func TestDerivePlacements(t *testing.T) {
	// Six players: four reach the knockout, two go out in the groups.
	tournament := &models.Tournament{
		Players: []models.TournamentPlayer{
			{ID: 11, PlayerID: 1, Seed: 1, GroupRank: intPtr(1)},
			{ID: 12, PlayerID: 2, Seed: 2, GroupRank: intPtr(2)},
			{ID: 13, PlayerID: 3, Seed: 3, GroupRank: intPtr(1)},
			{ID: 14, PlayerID: 4, Seed: 4, GroupRank: intPtr(2)},
			{ID: 15, PlayerID: 5, Seed: 5, GroupRank: intPtr(3)},
			{ID: 16, PlayerID: 6, Seed: 6, GroupRank: intPtr(3)},
		},
		Matches: []models.Match{
			knockoutMatch(1, 1, 1, 2, 1),
			knockoutMatch(1, 2, 3, 4, 3),
			knockoutMatch(2, 1, 1, 3, 1),
		},
	}

	results := derivePlacements(tournament)
	require.Len(t, results, 6)

	byPlayer := make(map[int]int, len(results))
	for _, r := range results {
		byPlayer[r.PlayerID] = r.Placement
	}

	assert.Equal(t, 1, byPlayer[1], "final winner")
	assert.Equal(t, 2, byPlayer[3], "final loser")
	assert.Equal(t, 3, byPlayer[2], "semifinal loser")
	assert.Equal(t, 3, byPlayer[4], "semifinal loser")
	// Group-stage eliminations share the tier below all knockout players.
	assert.Equal(t, 5, byPlayer[5])
	assert.Equal(t, 5, byPlayer[6])

	// Results come back ordered by placement.
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Placement, results[i].Placement)
	}
}

func TestDerivePlacementsGroupTiers(t *testing.T) {
	// No shared ranks below the qualifiers: each tier advances by one.
	tournament := &models.Tournament{
		Players: []models.TournamentPlayer{
			{ID: 11, PlayerID: 1, Seed: 1, GroupRank: intPtr(1)},
			{ID: 12, PlayerID: 2, Seed: 2, GroupRank: intPtr(2)},
			{ID: 13, PlayerID: 3, Seed: 3, GroupRank: intPtr(3)},
			{ID: 14, PlayerID: 4, Seed: 4, GroupRank: intPtr(4)},
		},
		Matches: []models.Match{
			knockoutMatch(1, 1, 1, 2, 1),
		},
	}

	results := derivePlacements(tournament)
	require.Len(t, results, 4)

	byPlayer := make(map[int]int, len(results))
	for _, r := range results {
		byPlayer[r.PlayerID] = r.Placement
	}
	assert.Equal(t, 1, byPlayer[1])
	assert.Equal(t, 2, byPlayer[2])
	assert.Equal(t, 3, byPlayer[3])
	assert.Equal(t, 4, byPlayer[4])
}

func TestFreezeStats(t *testing.T) {
	match1 := models.Match{
		Status:         models.MatchFinished,
		Player1ID:      intPtr(1),
		Player2ID:      intPtr(2),
		WinnerPlayerID: intPtr(1),
		Player1Stats: models.SideStats{
			LegsWon: 3, TotalScore: 1503, DartsThrown: 45,
			Maximums: 2, HighestCheckout: 120,
		},
		Player2Stats: models.SideStats{
			LegsWon: 1, TotalScore: 1300, DartsThrown: 48,
		},
	}
	match2 := models.Match{
		Status:         models.MatchFinished,
		Player1ID:      intPtr(1),
		Player2ID:      intPtr(3),
		WinnerPlayerID: intPtr(3),
		Player1Stats: models.SideStats{
			LegsWon: 2, TotalScore: 1002, DartsThrown: 30,
			HighestCheckout: 161,
		},
		Player2Stats: models.SideStats{
			LegsWon: 3, TotalScore: 1400, DartsThrown: 42,
		},
	}

	tournament := &models.Tournament{
		Players: []models.TournamentPlayer{
			{ID: 11, PlayerID: 1},
			{ID: 12, PlayerID: 2},
			{ID: 13, PlayerID: 3},
		},
		Matches: []models.Match{match1, match2},
	}

	stats := freezeStats(tournament)

	p1 := stats[11]
	assert.Equal(t, 5, p1.LegsWon)
	assert.Equal(t, 4, p1.LegsLost)
	assert.Equal(t, 1, p1.MatchesWon)
	assert.Equal(t, 1, p1.MatchesLost)
	assert.Equal(t, 2, p1.Maximums)
	assert.Equal(t, 161, p1.HighestCheckout)
	// (1503+1002)/(45+30)*3 = 100.2
	assert.InDelta(t, 100.2, p1.Average, 0.001)

	p2 := stats[12]
	assert.Equal(t, 1, p2.LegsWon)
	assert.Equal(t, 3, p2.LegsLost)
	assert.Equal(t, 0, p2.MatchesWon)
	assert.Equal(t, 1, p2.MatchesLost)

	p3 := stats[13]
	assert.Equal(t, 1, p3.MatchesWon)
	assert.Equal(t, 2, p3.LegsLost)
}

func TestFreezeStatsUnfinishedMatchesIgnored(t *testing.T) {
	tournament := &models.Tournament{
		Players: []models.TournamentPlayer{{ID: 11, PlayerID: 1}, {ID: 12, PlayerID: 2}},
		Matches: []models.Match{
			{
				Status:       models.MatchOngoing,
				Player1ID:    intPtr(1),
				Player2ID:    intPtr(2),
				Player1Stats: models.SideStats{LegsWon: 2, TotalScore: 900, DartsThrown: 30},
			},
		},
	}

	stats := freezeStats(tournament)
	assert.Zero(t, stats[11].LegsWon)
	assert.Zero(t, stats[11].Average)
}
