package rating

import (
	"fmt"
	"sort"

	"github.com/oacdarts/tournament-engine/models"
)

// Warning reports a history entry the replay had to skip. Skips are never
// fatal; the batch continues for every other record.
type Warning struct {
	TournamentID int    `json:"tournament_id"`
	Reason       string `json:"reason"`
}

// ReplayResult is the outcome of rebuilding a player's history from the fixed
// baseline: final ratings, aggregate stats, and the recomputed entries with
// their per-tournament deltas and season years.
type ReplayResult struct {
	MMR         int
	VerifiedMMR int
	Aggregate   models.PlayerStats
	Entries     []models.TournamentHistoryEntry
	Warnings    []Warning
	Replayed    int
	Skipped     int
}

// Replay rebuilds ratings and aggregate stats from scratch by walking the
// player's tournament history in ascending date order, starting both tracks
// at the baseline of 800. It is a pure function of its inputs: running it
// twice over the same history yields the same result, and no rating computed
// outside the replay leaks in.
//
// Entries without a resolvable date or without stats are skipped with an
// explicit warning instead of silently defaulting (a missing date would
// otherwise land the record in year 0).
//
// Verified eligibility is judged per entry against the threshold recorded on
// it at finish time, so a replay reproduces exactly the deltas the live
// updates applied.
func Replay(entries []models.TournamentHistoryEntry) ReplayResult {
	res := ReplayResult{
		MMR:         models.RatingBaseline,
		VerifiedMMR: models.RatingBaseline,
	}

	type replayEntry struct {
		entry models.TournamentHistoryEntry
		stats models.PlayerStats
		order int
	}
	valid := make([]replayEntry, 0, len(entries))

	for i, e := range entries {
		if _, ok := e.EffectiveDate(); !ok {
			res.Warnings = append(res.Warnings, Warning{
				TournamentID: e.TournamentID,
				Reason:       "no date or start date on history entry",
			})
			res.Skipped++
			continue
		}
		stats, err := e.ParseStats()
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{
				TournamentID: e.TournamentID,
				Reason:       fmt.Sprintf("unreadable stats: %v", err),
			})
			res.Skipped++
			continue
		}
		if stats == nil {
			res.Warnings = append(res.Warnings, Warning{
				TournamentID: e.TournamentID,
				Reason:       "history entry has no stats",
			})
			res.Skipped++
			continue
		}
		valid = append(valid, replayEntry{entry: e, stats: *stats, order: i})
	}

	// Ascending date; input order breaks date ties so the pass stays stable.
	sort.SliceStable(valid, func(a, b int) bool {
		da, _ := valid[a].entry.EffectiveDate()
		db, _ := valid[b].entry.EffectiveDate()
		if !da.Equal(db) {
			return da.Before(db)
		}
		return valid[a].order < valid[b].order
	})

	generalAvg, generalCount := 0.0, 0
	verifiedAvg, verifiedCount := 0.0, 0

	for _, re := range valid {
		e := re.entry
		stats := re.stats
		date, _ := e.EffectiveDate()
		e.SeasonYear = date.Year()
		e.Stats = &stats

		in := Input{
			Placement:         e.Placement,
			TotalParticipants: e.TotalParticipants,
			Average:           stats.Average,
			MatchesWon:        stats.MatchesWon,
			Maximums:          stats.Maximums,
			HighestCheckout:   stats.HighestCheckout,
		}

		in.CurrentRating = res.MMR
		in.BaselineAverage = generalAvg
		next := Change(in)
		e.MMRDelta = next - res.MMR
		res.MMR = next

		if e.VerifiedEligible() {
			in.CurrentRating = res.VerifiedMMR
			in.BaselineAverage = verifiedAvg
			vnext := Change(in)
			e.VerifiedMMRDelta = vnext - res.VerifiedMMR
			res.VerifiedMMR = vnext

			verifiedAvg = NextAverage(verifiedAvg, verifiedCount, stats.Average)
			verifiedCount++
		} else {
			e.VerifiedMMRDelta = 0
		}

		res.Aggregate.LegsWon += stats.LegsWon
		res.Aggregate.LegsLost += stats.LegsLost
		res.Aggregate.MatchesWon += stats.MatchesWon
		res.Aggregate.MatchesLost += stats.MatchesLost
		res.Aggregate.Maximums += stats.Maximums
		if stats.HighestCheckout > res.Aggregate.HighestCheckout {
			res.Aggregate.HighestCheckout = stats.HighestCheckout
		}
		res.Aggregate.Average = NextAverage(generalAvg, generalCount, stats.Average)

		generalAvg = NextAverage(generalAvg, generalCount, stats.Average)
		generalCount++

		res.Entries = append(res.Entries, e)
		res.Replayed++
	}

	return res
}
