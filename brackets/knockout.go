// Package brackets builds tournament structures as pure in-memory plans. The
// service layer persists a plan in a single transaction; nothing in here
// touches storage.
package brackets

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/dominikbraun/graph"
)

// ErrBracketValidation is the root of every precondition failure of the
// generators; callers match on it with errors.Is.
var ErrBracketValidation = errors.New("bracket validation failed")

// Slot is one side of a planned match: either a resolved player or a
// reference to the match whose winner will fill it.
type Slot struct {
	PlayerID  *int
	SourceUID *string
}

func (s Slot) Resolved() bool { return s.PlayerID != nil }

// BracketMatch is one planned knockout match, identified by a UID of the form
// "R<round>M<order>" that the persisted bracket links refer back to.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int
	BoardNumber  *int
	Slot1        Slot
	Slot2        Slot

	// Bye matches are not played; the lone player advances immediately and
	// the service layer creates no match row for them.
	IsBye       bool
	ByePlayerID *int
}

// KnockoutParams are the inputs of GenerateKnockout. Seeded carries the top
// qualification band (group winners) in group order; Pool carries every other
// qualifier. Board assignment is round-robin over BoardCount.
type KnockoutParams struct {
	Seeded   []int
	Pool     []int
	Boards   int
	Shuffler Shuffler
}

// KnockoutPlan is the complete bracket: round 1 pairings, the pre-seeded
// round 2, and unresolved placeholders down to the final.
type KnockoutPlan struct {
	Rounds  int
	Matches []*BracketMatch
}

// MatchesInRound returns the planned matches of one round, in order.
func (p *KnockoutPlan) MatchesInRound(round int) []*BracketMatch {
	var out []*BracketMatch
	for _, m := range p.Matches {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// GenerateKnockout builds a seeded single-elimination bracket:
//
//  1. the pooled qualifiers are shuffled and paired into round 1, padded with
//     byes up to a power of two;
//  2. every round-2 match reserves one slot for a seeded group winner and one
//     for a round-1 winner, so seeds cannot meet before round 3;
//  3. rounds 3..N are unresolved placeholders, halving until one match remains.
//
// The seeded band must therefore hold exactly half the padded round-1 field.
func GenerateKnockout(params KnockoutParams) (*KnockoutPlan, error) {
	seeded, pool := params.Seeded, params.Pool
	if len(pool) < 2 {
		return nil, fmt.Errorf("%w: pooled qualifier band requires at least 2 players, found %d",
			ErrBracketValidation, len(pool))
	}
	if len(seeded) < 1 {
		return nil, fmt.Errorf("%w: seeded band (group winners) requires at least 1 player, found 0",
			ErrBracketValidation)
	}
	if params.Shuffler == nil {
		return nil, fmt.Errorf("%w: shuffler is required", ErrBracketValidation)
	}

	bracketSize := nextPowerOfTwo(len(pool))
	byes := bracketSize - len(pool)
	round1Count := bracketSize / 2

	// One seed per round-2 match, one round-2 match per round-1 winner.
	if len(seeded) != round1Count {
		return nil, fmt.Errorf("%w: seeded band (group winners) requires exactly %d players for a pool of %d, found %d",
			ErrBracketValidation, round1Count, len(pool), len(seeded))
	}

	playedRound1 := round1Count - byes
	if params.Boards < 1 || params.Boards < playedRound1 {
		return nil, fmt.Errorf("%w: round 1 needs %d boards, only %d available",
			ErrBracketValidation, playedRound1, params.Boards)
	}

	shuffled := make([]int, len(pool))
	copy(shuffled, pool)
	params.Shuffler.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	rounds := 1 + log2(bracketSize)
	plan := &KnockoutPlan{Rounds: rounds}

	// Round 1: the first round1Count-byes matches take two pooled players
	// each, the remaining matches take one player and a bye.
	next := 0
	board := 0
	for i := 0; i < round1Count; i++ {
		m := &BracketMatch{
			UID:          bracketUID(1, i+1),
			Round:        1,
			OrderInRound: i + 1,
		}
		p1 := shuffled[next]
		next++
		m.Slot1 = Slot{PlayerID: &p1}
		if i < playedRound1 {
			p2 := shuffled[next]
			next++
			m.Slot2 = Slot{PlayerID: &p2}
			b := board%params.Boards + 1
			board++
			m.BoardNumber = &b
		} else {
			m.IsBye = true
			m.ByePlayerID = &p1
		}
		plan.Matches = append(plan.Matches, m)
	}

	// Round 2: seed versus the corresponding round-1 winner. A bye resolves
	// its slot immediately.
	for i := 0; i < round1Count; i++ {
		seed := seeded[i]
		m := &BracketMatch{
			UID:          bracketUID(2, i+1),
			Round:        2,
			OrderInRound: i + 1,
			Slot1:        Slot{PlayerID: &seed},
		}
		source := plan.Matches[i]
		if source.IsBye {
			m.Slot2 = Slot{PlayerID: source.ByePlayerID}
		} else {
			uid := source.UID
			m.Slot2 = Slot{SourceUID: &uid}
		}
		plan.Matches = append(plan.Matches, m)
	}

	// Rounds 3..N: fully unresolved placeholders halving to the final.
	prevCount := round1Count
	for r := 3; r <= rounds; r++ {
		count := prevCount / 2
		for i := 0; i < count; i++ {
			uid1 := bracketUID(r-1, 2*i+1)
			uid2 := bracketUID(r-1, 2*i+2)
			plan.Matches = append(plan.Matches, &BracketMatch{
				UID:          bracketUID(r, i+1),
				Round:        r,
				OrderInRound: i + 1,
				Slot1:        Slot{SourceUID: &uid1},
				Slot2:        Slot{SourceUID: &uid2},
			})
		}
		prevCount = count
	}

	if err := validateLinks(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// validateLinks checks that the winner-propagation links form a DAG and only
// refer to matches that exist. A violation is an internal bug of the
// generator, but catching it here keeps a broken plan out of the store.
func validateLinks(plan *KnockoutPlan) error {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, m := range plan.Matches {
		if err := g.AddVertex(m.UID); err != nil {
			return fmt.Errorf("duplicate bracket match uid %s: %w", m.UID, err)
		}
	}
	for _, m := range plan.Matches {
		for _, slot := range []Slot{m.Slot1, m.Slot2} {
			if slot.SourceUID == nil {
				continue
			}
			if err := g.AddEdge(*slot.SourceUID, m.UID); err != nil {
				return fmt.Errorf("invalid bracket link %s -> %s: %w", *slot.SourceUID, m.UID, err)
			}
		}
	}
	return nil
}

func bracketUID(round, order int) string {
	return fmt.Sprintf("R%dM%d", round, order)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}
