package brackets

import (
	"fmt"
)

// GroupPlan assigns the confirmed player pool to groups. Groups[i] holds the
// player ids of group i+1, each group mapping to exactly one board.
type GroupPlan struct {
	Groups [][]int
}

// AssignGroups shuffles the confirmed players and deals them across groupCount
// groups. Group sizes differ by at most one and always sum to len(playerIDs);
// no player appears twice.
func AssignGroups(playerIDs []int, groupCount int, shuffler Shuffler) (*GroupPlan, error) {
	if groupCount < 1 {
		return nil, fmt.Errorf("%w: group count must be at least 1, got %d", ErrBracketValidation, groupCount)
	}
	if len(playerIDs) < groupCount*2 {
		return nil, fmt.Errorf("%w: %d confirmed players cannot fill %d groups of at least 2",
			ErrBracketValidation, len(playerIDs), groupCount)
	}

	shuffled := make([]int, len(playerIDs))
	copy(shuffled, playerIDs)
	shuffler.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	groups := make([][]int, groupCount)
	for i, id := range shuffled {
		g := i % groupCount
		groups[g] = append(groups[g], id)
	}
	return &GroupPlan{Groups: groups}, nil
}

// RoundRobinPairs produces the single round-robin match set of one group,
// every player against every other exactly once, using the circle method so
// consecutive pairings spread each player's matches out.
func RoundRobinPairs(playerIDs []int) [][2]int {
	ids := make([]int, len(playerIDs))
	copy(ids, playerIDs)

	// Odd field: a rotating bye slot keeps the circle even. Negative so no
	// legitimate player id can collide with it.
	const bye = -1
	hasBye := false
	if len(ids)%2 != 0 {
		ids = append(ids, bye)
		hasBye = true
	}
	n := len(ids)
	if n < 2 {
		return nil
	}

	pairs := make([][2]int, 0, len(playerIDs)*(len(playerIDs)-1)/2)
	for round := 0; round < n-1; round++ {
		for i := 0; i < n/2; i++ {
			a := ids[i]
			b := ids[n-1-i]
			if hasBye && (a == bye || b == bye) {
				continue
			}
			pairs = append(pairs, [2]int{a, b})
		}
		// Rotate all but the first element.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}
	return pairs
}
