// Package rating implements the MMR formulas and the deterministic history
// replay. Everything here is pure: persistence, locking and retries belong to
// the service layer.
package rating

import "math"

// Input carries everything the rating formula needs for one player in one
// finished tournament.
type Input struct {
	CurrentRating     int
	Placement         int
	TotalParticipants int

	// Average is the player's 3-dart average in this tournament.
	Average float64
	// BaselineAverage is the arithmetic mean of the player's averages over
	// the prior history entries of the track being updated. Zero means no
	// prior history, which zeroes the performance term.
	BaselineAverage float64

	MatchesWon      int
	Maximums        int
	HighestCheckout int
}

// Change returns the player's new rating. A tournament without a single match
// win never moves the rating; attendance alone is not penalized.
func Change(in Input) int {
	if in.MatchesWon == 0 {
		return in.CurrentRating
	}

	performance := 0.0
	if in.BaselineAverage > 0 {
		performance = (in.Average - in.BaselineAverage) * 2.5
	}
	placement := (float64(in.TotalParticipants)/2 - float64(in.Placement)) * 2
	bonus := float64(in.Maximums*5 + HighCheckoutBonus(in.HighestCheckout))

	next := int(math.Round(float64(in.CurrentRating) + performance + placement + bonus))
	if next < 0 {
		return 0
	}
	return next
}

// Delta is the signed rating movement Change would apply.
func Delta(in Input) int {
	return Change(in) - in.CurrentRating
}

// HighCheckoutBonus rewards big finishes: nothing below 100, 5 points for a
// ton-plus checkout, 15 for 150 up to the maximum possible 170.
func HighCheckoutBonus(checkout int) int {
	switch {
	case checkout >= 150 && checkout <= 170:
		return 15
	case checkout >= 100 && checkout < 150:
		return 5
	default:
		return 0
	}
}

// NextAverage folds one new value into a running arithmetic mean without
// keeping the series around.
func NextAverage(prior float64, priorCount int, value float64) float64 {
	if priorCount <= 0 {
		return value
	}
	return (prior*float64(priorCount) + value) / float64(priorCount+1)
}
