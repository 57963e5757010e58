// Package score converts accumulated activity seconds into a bounded
// productivity score and ranks agents for the leaderboards.
package score

import (
	"math"
	"sort"

	"pulseboard/internal/models"
)

// Compute returns the productivity score: one point per net hour of
// activity, rounded to one decimal place and floored at zero.
func Compute(activeSeconds, inactiveSeconds int64) float64 {
	hours := float64(activeSeconds-inactiveSeconds) / 3600.0
	rounded := math.Round(hours*10) / 10
	if rounded < 0 {
		return 0
	}
	return rounded
}

// Rank orders entries by descending score, ties broken by ascending
// agent id, and assigns dense ordinal ranks 1..n. Tied scores keep
// distinct ranks; the secondary key makes the order deterministic.
// The input slice is sorted in place and returned.
func Rank(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].AgentID < entries[j].AgentID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
