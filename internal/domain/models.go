package domain

import (
	"time"
)

type Player struct {
	ID        string
	Name      string
	Rating    int
	Wins      int
	Losses    int
	Division  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Player) WinRate() float64 {
	total := p.Wins + p.Losses
	if total <= 0 {
		return 0
	}
	return float64(p.Wins) / float64(total)
}

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// Team identifies one side of a match. Values double as winner labels.
type Team string

const (
	Team1 Team = "team1"
	Team2 Team = "team2"
)

// DisplayName is the colour the chat layer shows for the team.
func (t Team) DisplayName() string {
	switch t {
	case Team1:
		return "Blue"
	case Team2:
		return "Red"
	default:
		return string(t)
	}
}

type VoteLabel string

const (
	VoteTeam1  VoteLabel = "team1"
	VoteTeam2  VoteLabel = "team2"
	VoteCancel VoteLabel = "cancel"
)

// VoteLabels is the fixed order used when counting ballots.
var VoteLabels = []VoteLabel{VoteTeam1, VoteTeam2, VoteCancel}

func ParseVoteLabel(s string) (VoteLabel, bool) {
	for _, l := range VoteLabels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Team maps a team-win label to its team. Cancel votes have no team.
func (l VoteLabel) Team() (Team, bool) {
	switch l {
	case VoteTeam1:
		return Team1, true
	case VoteTeam2:
		return Team2, true
	default:
		return "", false
	}
}

type MapInfo struct {
	Mode  string
	Name  string
	Emoji string
}

type MatchRecord struct {
	ID          int64
	MapMode     string
	MapName     string
	MapEmoji    string
	Team1IDs    []string
	Team2IDs    []string
	Team1Score  int
	Team2Score  int
	Status      MatchStatus
	Winner      Team // empty unless completed
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (m *MatchRecord) IsPending() bool {
	return m.Status == MatchPending
}

// TeamOf reports which roster the player is on.
func (m *MatchRecord) TeamOf(playerID string) (Team, bool) {
	for _, id := range m.Team1IDs {
		if id == playerID {
			return Team1, true
		}
	}
	for _, id := range m.Team2IDs {
		if id == playerID {
			return Team2, true
		}
	}
	return "", false
}

// Participants returns the distinct player ids across both rosters, team1 first.
func (m *MatchRecord) Participants() []string {
	seen := make(map[string]struct{}, len(m.Team1IDs)+len(m.Team2IDs))
	ids := make([]string, 0, len(m.Team1IDs)+len(m.Team2IDs))
	for _, roster := range [][]string{m.Team1IDs, m.Team2IDs} {
		for _, id := range roster {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// PlayerUpdate is the post-match state the core proposes for storage.
type PlayerUpdate struct {
	ID     string
	Rating int
	Wins   int
	Losses int
}

// MatchResult is the decided series as written on completion.
type MatchResult struct {
	Winner     Team
	Team1Score int
	Team2Score int
}

// Rater turns the participants, as stored when the settlement runs, into
// their post-match state and rating history rows.
type Rater func(players map[string]Player) ([]PlayerUpdate, []RatingChange, error)

type RatingChange struct {
	ID        string // nanoid, assigned by storage when empty
	MatchID   int64
	PlayerID  string
	Before    int
	Delta     int
	After     int
	Won       bool
	CreatedAt time.Time
}

type Rank struct {
	MinRating int
	Name      string
	Emoji     string
}

type TierSpec struct {
	Tier     string
	Ratio    float64
	MinCount int
}

type TierBoundary struct {
	Tier    string
	EndRank int
}
