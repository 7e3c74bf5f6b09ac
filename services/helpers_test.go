package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oacdarts/tournament-engine/models"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to models.TournamentStatus
		valid    bool
	}{
		{models.StatusPending, models.StatusGroupStage, true},
		{models.StatusGroupStage, models.StatusKnockout, true},
		{models.StatusKnockout, models.StatusFinished, true},

		{models.StatusPending, models.StatusKnockout, false},
		{models.StatusPending, models.StatusFinished, false},
		{models.StatusGroupStage, models.StatusPending, false},
		{models.StatusGroupStage, models.StatusFinished, false},
		{models.StatusKnockout, models.StatusGroupStage, false},
		{models.StatusFinished, models.StatusPending, false},
		{models.StatusFinished, models.StatusKnockout, false},
	}

	for _, tt := range tests {
		got := isValidStatusTransition(tt.from, tt.to)
		assert.Equal(t, tt.valid, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestEffectiveLegsToWin(t *testing.T) {
	assert.Equal(t, 5, effectiveLegsToWin(5, 3), "explicit override wins")
	assert.Equal(t, 3, effectiveLegsToWin(0, 3), "zero falls back to the configured value")
	assert.Equal(t, 3, effectiveLegsToWin(-1, 3))
}
