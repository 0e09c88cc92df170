// Package balance splits a batch of players into two teams of similar strength.
package balance

import (
	"errors"
	"slices"

	"league-matchmaker/internal/domain"
)

var ErrTooFewPlayers = errors.New("at least two players are required to form teams")

type Teams struct {
	Team1 []domain.Player
	Team2 []domain.Player
}

func (t Teams) Team1IDs() []string { return ids(t.Team1) }
func (t Teams) Team2IDs() []string { return ids(t.Team2) }

// Serpent sorts players by rating, highest first, and deals them out
// alternately: even positions to team 1, odd positions to team 2.
// Equal ratings keep their input order.
func Serpent(players []domain.Player) (Teams, error) {
	if len(players) < 2 {
		return Teams{}, ErrTooFewPlayers
	}

	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b domain.Player) int {
		return b.Rating - a.Rating
	})

	teams := Teams{
		Team1: make([]domain.Player, 0, (len(sorted)+1)/2),
		Team2: make([]domain.Player, 0, len(sorted)/2),
	}
	for i, p := range sorted {
		if i%2 == 0 {
			teams.Team1 = append(teams.Team1, p)
		} else {
			teams.Team2 = append(teams.Team2, p)
		}
	}
	return teams, nil
}

func ids(players []domain.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}
