// Package tier splits a ranked leaderboard into display tiers by population ratio.
package tier

import (
	"math"

	"league-matchmaker/internal/domain"
)

const Unranked = "Unranked"

// Boundaries assigns consecutive rank ranges to tiers, highest tier first.
// Every tier except the last takes floor(total*ratio) ranks, at least its
// MinCount, while leaving room for the MinCount of every tier below it.
// The last tier absorbs whatever is left.
func Boundaries(specs []domain.TierSpec, total int) []domain.TierBoundary {
	if total <= 0 || len(specs) == 0 {
		return nil
	}

	futureMin := make([]int, len(specs)+1)
	for i := len(specs) - 1; i >= 0; i-- {
		futureMin[i] = futureMin[i+1] + max(specs[i].MinCount, 0)
	}

	remaining := total
	boundaries := make([]domain.TierBoundary, 0, len(specs))

	for i, spec := range specs {
		if remaining <= 0 {
			break
		}

		var count int
		if i == len(specs)-1 {
			count = remaining
		} else {
			count = int(math.Floor(float64(total) * spec.Ratio))
			if count < spec.MinCount {
				count = spec.MinCount
			}
			maxAllowed := max(remaining-futureMin[i+1], 0)
			if count > maxAllowed {
				// a tier's own minimum wins over the reservation for lower tiers
				count = max(spec.MinCount, maxAllowed)
			}
		}

		if count > remaining {
			count = remaining
		}
		if count <= 0 {
			continue
		}

		remaining -= count
		boundaries = append(boundaries, domain.TierBoundary{
			Tier:    spec.Tier,
			EndRank: total - remaining,
		})
	}

	return boundaries
}

// ForRank returns the tier holding the 1-indexed rank.
func ForRank(rank int, boundaries []domain.TierBoundary) string {
	if rank <= 0 {
		return Unranked
	}
	for _, b := range boundaries {
		if rank <= b.EndRank {
			return b.Tier
		}
	}
	return Unranked
}
