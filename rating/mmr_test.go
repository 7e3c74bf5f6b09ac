package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeZeroWinsLeavesRatingUntouched(t *testing.T) {
	for _, in := range []Input{
		{CurrentRating: 800, Placement: 1, TotalParticipants: 64, Average: 95, Maximums: 9, HighestCheckout: 170},
		{CurrentRating: 0, Placement: 48, TotalParticipants: 48},
		{CurrentRating: 1234, Placement: 2, TotalParticipants: 16, BaselineAverage: 60, Average: 90},
	} {
		in.MatchesWon = 0
		assert.Equal(t, in.CurrentRating, Change(in))
		assert.Equal(t, 0, Delta(in))
	}
}

func TestChangePlacementOnly(t *testing.T) {
	// 0 performance (no baseline), (16/2 - 1) * 2 = 14 placement, 0 bonus.
	got := Change(Input{
		CurrentRating:     800,
		Placement:         1,
		TotalParticipants: 16,
		BaselineAverage:   0,
		MatchesWon:        3,
	})
	assert.Equal(t, 814, got)
}

func TestChangeBonuses(t *testing.T) {
	base := Change(Input{
		CurrentRating:     800,
		Placement:         1,
		TotalParticipants: 16,
		MatchesWon:        3,
	})
	withBonus := Change(Input{
		CurrentRating:     800,
		Placement:         1,
		TotalParticipants: 16,
		MatchesWon:        3,
		Maximums:          2,
		HighestCheckout:   160,
	})
	// Two 180s and a 160 checkout: 10 + 15 = 25 on top.
	assert.Equal(t, base+25, withBonus)
}

func TestChangePerformanceTerm(t *testing.T) {
	got := Change(Input{
		CurrentRating:     800,
		Placement:         8,
		TotalParticipants: 16,
		Average:           70,
		BaselineAverage:   60,
		MatchesWon:        1,
	})
	// performance (70-60)*2.5 = 25, placement (8-8)*2 = 0.
	assert.Equal(t, 825, got)
}

func TestChangeFloorsAtZero(t *testing.T) {
	got := Change(Input{
		CurrentRating:     5,
		Placement:         32,
		TotalParticipants: 32,
		MatchesWon:        1,
	})
	// placement (16-32)*2 = -32; 5-32 < 0 floors to 0.
	assert.Equal(t, 0, got)
}

func TestHighCheckoutBonus(t *testing.T) {
	cases := map[int]int{
		0:   0,
		40:  0,
		99:  0,
		100: 5,
		149: 5,
		150: 15,
		160: 15,
		170: 15,
	}
	for checkout, want := range cases {
		assert.Equal(t, want, HighCheckoutBonus(checkout), "checkout %d", checkout)
	}
}

func TestNextAverage(t *testing.T) {
	avg := NextAverage(0, 0, 60)
	assert.InDelta(t, 60, avg, 1e-9)
	avg = NextAverage(avg, 1, 90)
	assert.InDelta(t, 75, avg, 1e-9)
	avg = NextAverage(avg, 2, 75)
	assert.InDelta(t, 75, avg, 1e-9)
}
