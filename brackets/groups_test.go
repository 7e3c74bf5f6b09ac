package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignGroupsPartitionsExactly(t *testing.T) {
	for _, tc := range []struct {
		players int
		groups  int
	}{
		{8, 2},
		{9, 3},
		{70, 16},
		{33, 5},
	} {
		plan, err := AssignGroups(sequence(1, tc.players), tc.groups, NewSeededShuffler(3))
		require.NoError(t, err)
		require.Len(t, plan.Groups, tc.groups)

		seen := make(map[int]bool)
		total := 0
		minSize, maxSize := tc.players, 0
		for _, g := range plan.Groups {
			total += len(g)
			if len(g) < minSize {
				minSize = len(g)
			}
			if len(g) > maxSize {
				maxSize = len(g)
			}
			for _, id := range g {
				assert.False(t, seen[id], "player %d assigned twice", id)
				seen[id] = true
			}
		}
		assert.Equal(t, tc.players, total)
		assert.LessOrEqual(t, maxSize-minSize, 1, "group sizes differ by at most one")
	}
}

func TestAssignGroupsTooFewPlayers(t *testing.T) {
	_, err := AssignGroups(sequence(1, 5), 3, NewSeededShuffler(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBracketValidation)
}

func TestRoundRobinPairsEveryoneOnce(t *testing.T) {
	for _, n := range []int{2, 4, 5, 7} {
		players := sequence(1, n)
		pairs := RoundRobinPairs(players)
		assert.Len(t, pairs, n*(n-1)/2, "n=%d", n)

		type key struct{ a, b int }
		seen := make(map[key]bool)
		for _, p := range pairs {
			a, b := p[0], p[1]
			if a > b {
				a, b = b, a
			}
			k := key{a, b}
			assert.False(t, seen[k], "pair %v repeated", p)
			seen[k] = true
			assert.NotEqual(t, p[0], p[1])
		}
	}
}

func TestRoundRobinPairsKeepsPlayerIDZero(t *testing.T) {
	// An odd field containing id 0 must not be mistaken for the bye slot.
	pairs := RoundRobinPairs([]int{0, 1, 2})
	require.Len(t, pairs, 3)
	appearances := 0
	for _, p := range pairs {
		if p[0] == 0 || p[1] == 0 {
			appearances++
		}
	}
	assert.Equal(t, 2, appearances, "player 0 plays both opponents")
}

func TestRoundRobinPairsDegenerate(t *testing.T) {
	assert.Empty(t, RoundRobinPairs([]int{1}))
	assert.Empty(t, RoundRobinPairs(nil))
}
