// Package lifecycle drives a match from creation to a decided or cancelled
// series. Decide is the pure transition function; Book holds the per-match
// vote tallies and their locks.
package lifecycle

import (
	"league-matchmaker/internal/domain"
)

type Outcome int

const (
	// OutcomeNone means no label has reached a majority yet.
	OutcomeNone Outcome = iota
	OutcomeRoundWon
	OutcomeSeriesWon
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRoundWon:
		return "round_won"
	case OutcomeSeriesWon:
		return "series_won"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

type Decision struct {
	Outcome     Outcome
	Leader      domain.VoteLabel
	LeaderVotes int
	Majority    int

	// set for round and series wins
	Team       domain.Team
	Team1Score int
	Team2Score int
}

// Majority is the number of matching votes needed to act: more than half of
// the distinct players across both rosters, counting at least two players.
func Majority(m *domain.MatchRecord) int {
	total := len(m.Participants())
	if total < 2 {
		total = max(len(m.Team1IDs)+len(m.Team2IDs), 2)
	}
	return total/2 + 1
}

// Plurality returns the most voted label and its count. Ties go to the
// label listed first in domain.VoteLabels.
func Plurality(votes map[string]domain.VoteLabel) (domain.VoteLabel, int) {
	counts := make(map[domain.VoteLabel]int, len(domain.VoteLabels))
	for _, l := range votes {
		counts[l]++
	}

	var leader domain.VoteLabel
	best := 0
	for _, l := range domain.VoteLabels {
		if counts[l] > best {
			leader, best = l, counts[l]
		}
	}
	return leader, best
}

// Decide evaluates the current round's tally against the match. It never
// mutates the record; the caller persists whatever the decision implies.
func Decide(m *domain.MatchRecord, votes map[string]domain.VoteLabel, seriesWins int) Decision {
	seriesWins = max(seriesWins, 1)

	leader, count := Plurality(votes)
	d := Decision{
		Outcome:     OutcomeNone,
		Leader:      leader,
		LeaderVotes: count,
		Majority:    Majority(m),
		Team1Score:  m.Team1Score,
		Team2Score:  m.Team2Score,
	}

	if count == 0 || count < d.Majority {
		return d
	}

	team, ok := leader.Team()
	if !ok {
		d.Outcome = OutcomeCancelled
		return d
	}

	d.Team = team
	if team == domain.Team1 {
		d.Team1Score++
	} else {
		d.Team2Score++
	}

	if d.Team1Score >= seriesWins || d.Team2Score >= seriesWins {
		d.Outcome = OutcomeSeriesWon
	} else {
		d.Outcome = OutcomeRoundWon
	}
	return d
}
