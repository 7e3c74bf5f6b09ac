package rating

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oacdarts/tournament-engine/models"
)

func historyEntry(t *testing.T, tournamentID int, date time.Time, verified bool, field int, stats models.PlayerStats) models.TournamentHistoryEntry {
	t.Helper()
	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	return models.TournamentHistoryEntry{
		PlayerID:          1,
		TournamentID:      tournamentID,
		Date:              &date,
		Placement:         1,
		TotalParticipants: field,
		Verified:          verified,
		StatsJSON:         string(raw),
	}
}

func TestReplaySmallFieldNeverTouchesVerifiedMMR(t *testing.T) {
	entry := historyEntry(t, 1, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true, 15,
		models.PlayerStats{MatchesWon: 5, Average: 70})

	res := Replay([]models.TournamentHistoryEntry{entry})
	assert.Equal(t, models.RatingBaseline, res.VerifiedMMR)
	assert.Equal(t, 0, res.Entries[0].VerifiedMMRDelta)
	// The general track still moves.
	assert.NotEqual(t, models.RatingBaseline, res.MMR)
}

func TestReplayVerifiedUpdateAtThreshold(t *testing.T) {
	entry := historyEntry(t, 1, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true, 16,
		models.PlayerStats{MatchesWon: 5, Average: 70})

	res := Replay([]models.TournamentHistoryEntry{entry})
	// First verified tournament: no baseline average, placement 1 of 16 = +14.
	assert.Equal(t, 814, res.VerifiedMMR)
	assert.Equal(t, 14, res.Entries[0].VerifiedMMRDelta)
}

func TestReplayHonorsThresholdRecordedOnEntry(t *testing.T) {
	// A verified event run with a lowered threshold of 12 and exactly 12
	// entrants: the replayed delta must match the one applied at finish time.
	entry := historyEntry(t, 1, time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC), true, 12,
		models.PlayerStats{MatchesWon: 4, Average: 68})
	entry.VerifiedMinField = 12

	res := Replay([]models.TournamentHistoryEntry{entry})
	// Placement 1 of 12, no prior baseline: +10.
	assert.Equal(t, 810, res.VerifiedMMR)
	assert.Equal(t, 10, res.Entries[0].VerifiedMMRDelta)

	// The same field under the default threshold stays ineligible.
	entry.VerifiedMinField = 0
	res = Replay([]models.TournamentHistoryEntry{entry})
	assert.Equal(t, models.RatingBaseline, res.VerifiedMMR)
	assert.Equal(t, 0, res.Entries[0].VerifiedMMRDelta)
}

func TestReplayIdempotent(t *testing.T) {
	entries := []models.TournamentHistoryEntry{
		historyEntry(t, 1, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), true, 32,
			models.PlayerStats{MatchesWon: 3, MatchesLost: 1, LegsWon: 10, LegsLost: 5, Average: 65, Maximums: 1}),
		historyEntry(t, 2, time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC), false, 12,
			models.PlayerStats{MatchesWon: 1, MatchesLost: 2, LegsWon: 4, LegsLost: 6, Average: 58}),
		historyEntry(t, 3, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC), true, 48,
			models.PlayerStats{MatchesWon: 6, MatchesLost: 1, LegsWon: 20, LegsLost: 9, Average: 72, Maximums: 4, HighestCheckout: 124}),
	}

	first := Replay(entries)
	second := Replay(entries)

	assert.Equal(t, first.MMR, second.MMR)
	assert.Equal(t, first.VerifiedMMR, second.VerifiedMMR)
	assert.Equal(t, first.Aggregate, second.Aggregate)
	require.Equal(t, len(first.Entries), len(second.Entries))
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].MMRDelta, second.Entries[i].MMRDelta)
		assert.Equal(t, first.Entries[i].VerifiedMMRDelta, second.Entries[i].VerifiedMMRDelta)
		assert.Equal(t, first.Entries[i].SeasonYear, second.Entries[i].SeasonYear)
	}
}

func TestReplayOrdersByDateNotInputOrder(t *testing.T) {
	older := historyEntry(t, 1, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), false, 8,
		models.PlayerStats{MatchesWon: 1, Average: 50})
	newer := historyEntry(t, 2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), false, 8,
		models.PlayerStats{MatchesWon: 1, Average: 50})

	res := Replay([]models.TournamentHistoryEntry{newer, older})
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 1, res.Entries[0].TournamentID)
	assert.Equal(t, 2, res.Entries[1].TournamentID)
	assert.Equal(t, 2023, res.Entries[0].SeasonYear)
	assert.Equal(t, 2024, res.Entries[1].SeasonYear)
}

func TestReplaySkipsBrokenEntriesWithWarnings(t *testing.T) {
	good := historyEntry(t, 1, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), false, 8,
		models.PlayerStats{MatchesWon: 2, Average: 61})
	noStats := models.TournamentHistoryEntry{
		PlayerID:     1,
		TournamentID: 2,
		Date:         timePtr(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)),
	}
	noDate := models.TournamentHistoryEntry{
		PlayerID:     1,
		TournamentID: 3,
		StatsJSON:    `{"matches_won":1}`,
	}

	res := Replay([]models.TournamentHistoryEntry{good, noStats, noDate})
	assert.Equal(t, 1, res.Replayed)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 2, res.Warnings[0].TournamentID)
	assert.Equal(t, 3, res.Warnings[1].TournamentID)
}

func timePtr(t time.Time) *time.Time { return &t }
