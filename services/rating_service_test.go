package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oacdarts/tournament-engine/models"
)

func historyEntry(t *testing.T, average float64, verified bool, field int) *models.TournamentHistoryEntry {
	t.Helper()
	raw, err := json.Marshal(models.PlayerStats{Average: average, MatchesWon: 1})
	require.NoError(t, err)
	return &models.TournamentHistoryEntry{
		Verified:          verified,
		TotalParticipants: field,
		StatsJSON:         string(raw),
	}
}

func TestBaselineAverages(t *testing.T) {
	history := []*models.TournamentHistoryEntry{
		historyEntry(t, 60, false, 8),
		historyEntry(t, 70, true, 16),
		historyEntry(t, 80, true, 12), // verified but below the default threshold
		historyEntry(t, 90, true, 20),
	}

	general, verified := baselineAverages(history)

	assert.InDelta(t, 75.0, general, 0.001, "mean over all four entries")
	assert.InDelta(t, 80.0, verified, 0.001, "mean over the two counting verified entries")
}

func TestBaselineAveragesUsesPerEntryThreshold(t *testing.T) {
	lowered := historyEntry(t, 80, true, 12)
	lowered.VerifiedMinField = 12
	history := []*models.TournamentHistoryEntry{
		lowered,
		historyEntry(t, 60, true, 16),
	}

	general, verified := baselineAverages(history)
	assert.InDelta(t, 70.0, general, 0.001)
	assert.InDelta(t, 70.0, verified, 0.001, "the lowered-threshold entry counts")
}

func TestBaselineAveragesEmptyHistory(t *testing.T) {
	general, verified := baselineAverages(nil)
	assert.Zero(t, general)
	assert.Zero(t, verified)
}

func TestBaselineAveragesSkipsUnreadableStats(t *testing.T) {
	history := []*models.TournamentHistoryEntry{
		{StatsJSON: "{broken", Verified: true, TotalParticipants: 16},
		historyEntry(t, 50, false, 8),
	}

	general, verified := baselineAverages(history)
	assert.InDelta(t, 50.0, general, 0.001)
	assert.Zero(t, verified)
}
