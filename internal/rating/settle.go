package rating

import (
	"league-matchmaker/internal/domain"
)

// Settlement is the outcome of a decided series for a single player.
type Settlement struct {
	Player domain.Player
	Update domain.PlayerUpdate
	Change domain.RatingChange
}

// Settle computes the rating change of every participant. Each player is
// rated against the average of the opposing roster as it stands when the
// series is decided. Team 1 is returned first, in roster order.
func Settle(matchID int64, team1, team2 []domain.Player, winner domain.Team, k int) []Settlement {
	opponentAvg1 := TeamAverage(team2)
	opponentAvg2 := TeamAverage(team1)

	out := make([]Settlement, 0, len(team1)+len(team2))
	out = appendTeam(out, matchID, team1, opponentAvg1, winner == domain.Team1, k)
	out = appendTeam(out, matchID, team2, opponentAvg2, winner == domain.Team2, k)
	return out
}

func appendTeam(out []Settlement, matchID int64, players []domain.Player, opponentAvg float64, won bool, k int) []Settlement {
	for _, p := range players {
		delta := Delta(p.Rating, opponentAvg, won, k)
		after := Apply(p.Rating, delta)

		wins, losses := p.Wins, p.Losses
		if won {
			wins++
		} else {
			losses++
		}

		out = append(out, Settlement{
			Player: p,
			Update: domain.PlayerUpdate{
				ID:     p.ID,
				Rating: after,
				Wins:   wins,
				Losses: losses,
			},
			Change: domain.RatingChange{
				MatchID:  matchID,
				PlayerID: p.ID,
				Before:   p.Rating,
				Delta:    delta,
				After:    after,
				Won:      won,
			},
		})
	}
	return out
}

func Updates(settlements []Settlement) []domain.PlayerUpdate {
	updates := make([]domain.PlayerUpdate, len(settlements))
	for i, s := range settlements {
		updates[i] = s.Update
	}
	return updates
}

func Changes(settlements []Settlement) []domain.RatingChange {
	changes := make([]domain.RatingChange, len(settlements))
	for i, s := range settlements {
		changes[i] = s.Change
	}
	return changes
}
