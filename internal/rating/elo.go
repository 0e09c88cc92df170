// Package rating implements the ELO model used to settle finished series
// and to classify ratings into display ranks.
package rating

import (
	"math"

	"league-matchmaker/internal/domain"
)

// ExpectedScore returns the probability that a player rated a beats one rated b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// Delta is the rounded rating change for a player against the average
// rating of the opposing team.
func Delta(playerRating int, opponentAvg float64, won bool, k int) int {
	actual := 0.0
	if won {
		actual = 1.0
	}
	expected := ExpectedScore(float64(playerRating), opponentAvg)
	return int(math.Round(float64(k) * (actual - expected)))
}

// Apply adds delta to rating. Ratings never go below zero.
func Apply(rating, delta int) int {
	return max(0, rating+delta)
}

func TeamAverage(players []domain.Player) float64 {
	if len(players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range players {
		sum += p.Rating
	}
	return float64(sum) / float64(len(players))
}

// Classify returns the highest rank whose threshold does not exceed rating.
// ranks must be sorted ascending by MinRating; the first entry is the fallback.
func Classify(rating int, ranks []domain.Rank) domain.Rank {
	if len(ranks) == 0 {
		return domain.Rank{}
	}
	rank := ranks[0]
	for _, r := range ranks {
		if rating >= r.MinRating {
			rank = r
		}
	}
	return rank
}
