// Package standings derives ranked tables from finished matches. Calculate is
// a pure function of the match set; it is recomputed on demand and holds no
// state.
package standings

import (
	"sort"

	"github.com/oacdarts/tournament-engine/models"
)

// Row is one line of a standings table.
type Row struct {
	PlayerID      int `json:"player_id"`
	Points        int `json:"points"`
	MatchesWon    int `json:"matches_won"`
	MatchesLost   int `json:"matches_lost"`
	LegsWon       int `json:"legs_won"`
	LegsLost      int `json:"legs_lost"`
	LegDifference int `json:"leg_difference"`
	Rank          int `json:"rank"`
}

// Calculate ranks the given players over the given matches. playerIDs must be
// in registration order: that order is the stable tie-break of last resort, so
// repeated calls over the same inputs always produce the same table. Matches
// that are not finished contribute nothing.
func Calculate(playerIDs []int, matches []models.Match) []Row {
	index := make(map[int]int, len(playerIDs))
	rows := make([]Row, len(playerIDs))
	for i, id := range playerIDs {
		index[id] = i
		rows[i] = Row{PlayerID: id}
	}

	for _, m := range matches {
		if m.Status != models.MatchFinished {
			continue
		}
		if m.Player1ID == nil || m.Player2ID == nil || m.WinnerPlayerID == nil {
			continue
		}
		i1, ok1 := index[*m.Player1ID]
		i2, ok2 := index[*m.Player2ID]
		if !ok1 || !ok2 {
			continue
		}

		rows[i1].LegsWon += m.Player1Stats.LegsWon
		rows[i1].LegsLost += m.Player2Stats.LegsWon
		rows[i2].LegsWon += m.Player2Stats.LegsWon
		rows[i2].LegsLost += m.Player1Stats.LegsWon

		if *m.WinnerPlayerID == *m.Player1ID {
			rows[i1].MatchesWon++
			rows[i2].MatchesLost++
		} else {
			rows[i2].MatchesWon++
			rows[i1].MatchesLost++
		}
	}

	for i := range rows {
		rows[i].Points = rows[i].MatchesWon * 2
		rows[i].LegDifference = rows[i].LegsWon - rows[i].LegsLost
	}

	// Points desc, leg difference desc, legs won desc, registration order.
	// SliceStable keeps registration order for full ties.
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].Points != rows[b].Points {
			return rows[a].Points > rows[b].Points
		}
		if rows[a].LegDifference != rows[b].LegDifference {
			return rows[a].LegDifference > rows[b].LegDifference
		}
		return rows[a].LegsWon > rows[b].LegsWon
	})

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
