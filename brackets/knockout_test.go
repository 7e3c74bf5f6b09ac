package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func TestGenerateKnockoutSixteenSeedsThirtyTwoPooled(t *testing.T) {
	plan, err := GenerateKnockout(KnockoutParams{
		Seeded:   sequence(1, 16),
		Pool:     sequence(100, 32),
		Boards:   16,
		Shuffler: NewSeededShuffler(1),
	})
	require.NoError(t, err)

	assert.Equal(t, 6, plan.Rounds)

	round1 := plan.MatchesInRound(1)
	require.Len(t, round1, 16)
	seen := make(map[int]bool)
	for _, m := range round1 {
		assert.False(t, m.IsBye)
		require.True(t, m.Slot1.Resolved())
		require.True(t, m.Slot2.Resolved())
		require.NotNil(t, m.BoardNumber)
		seen[*m.Slot1.PlayerID] = true
		seen[*m.Slot2.PlayerID] = true
	}
	assert.Len(t, seen, 32, "every pooled player paired exactly once")

	round2 := plan.MatchesInRound(2)
	require.Len(t, round2, 16)
	for i, m := range round2 {
		require.True(t, m.Slot1.Resolved(), "round 2 seeded slot must be resolved")
		assert.Equal(t, i+1, *m.Slot1.PlayerID)
		require.NotNil(t, m.Slot2.SourceUID)
		assert.Equal(t, round1[i].UID, *m.Slot2.SourceUID)
	}

	// Placeholder rounds halve down to a single final.
	for r, want := range map[int]int{3: 8, 4: 4, 5: 2, 6: 1} {
		assert.Len(t, plan.MatchesInRound(r), want, "round %d", r)
	}
	final := plan.MatchesInRound(6)[0]
	assert.False(t, final.Slot1.Resolved())
	assert.False(t, final.Slot2.Resolved())
}

func TestGenerateKnockoutWrongSeedCountFails(t *testing.T) {
	_, err := GenerateKnockout(KnockoutParams{
		Seeded:   sequence(1, 15),
		Pool:     sequence(100, 32),
		Boards:   16,
		Shuffler: NewSeededShuffler(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBracketValidation)
	assert.Contains(t, err.Error(), "group winners")
	assert.Contains(t, err.Error(), "16")
}

func TestGenerateKnockoutInsufficientBoardsFails(t *testing.T) {
	_, err := GenerateKnockout(KnockoutParams{
		Seeded:   sequence(1, 16),
		Pool:     sequence(100, 32),
		Boards:   8,
		Shuffler: NewSeededShuffler(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBracketValidation)
	assert.Contains(t, err.Error(), "boards")
}

func TestGenerateKnockoutByesPadToPowerOfTwo(t *testing.T) {
	// 13 pooled players pad to 16 slots: 3 byes, 5 played matches.
	plan, err := GenerateKnockout(KnockoutParams{
		Seeded:   sequence(1, 8),
		Pool:     sequence(100, 13),
		Boards:   8,
		Shuffler: NewSeededShuffler(7),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, plan.Rounds)

	round1 := plan.MatchesInRound(1)
	require.Len(t, round1, 8)
	byes := 0
	for _, m := range round1 {
		if m.IsBye {
			byes++
			require.NotNil(t, m.ByePlayerID)
			assert.Nil(t, m.BoardNumber)
		}
	}
	assert.Equal(t, 3, byes)

	// Bye winners resolve their round-2 slot immediately.
	resolvedFromBye := 0
	for i, m := range plan.MatchesInRound(2) {
		if round1[i].IsBye {
			require.True(t, m.Slot2.Resolved())
			assert.Equal(t, *round1[i].ByePlayerID, *m.Slot2.PlayerID)
			resolvedFromBye++
		}
	}
	assert.Equal(t, 3, resolvedFromBye)
}

func TestGenerateKnockoutDeterministicWithSeed(t *testing.T) {
	params := KnockoutParams{
		Seeded: sequence(1, 4),
		Pool:   sequence(100, 8),
		Boards: 4,
	}
	params.Shuffler = NewSeededShuffler(42)
	a, err := GenerateKnockout(params)
	require.NoError(t, err)
	params.Shuffler = NewSeededShuffler(42)
	b, err := GenerateKnockout(params)
	require.NoError(t, err)

	require.Equal(t, len(a.Matches), len(b.Matches))
	for i := range a.Matches {
		assert.Equal(t, a.Matches[i].UID, b.Matches[i].UID)
		assert.Equal(t, a.Matches[i].Slot1, b.Matches[i].Slot1)
		assert.Equal(t, a.Matches[i].Slot2, b.Matches[i].Slot2)
	}
}
