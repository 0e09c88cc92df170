package service

import (
	"fmt"
	"strings"

	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/rating"
)

func FormatMapRotation(rotation []constants.MapMode) string {
	var b strings.Builder
	b.WriteString("Map rotation")
	for _, mode := range rotation {
		fmt.Fprintf(&b, "\n%s %s: %s", mode.Emoji, mode.Mode, strings.Join(mode.Maps, ", "))
	}
	return b.String()
}

func FormatJoin(name string, queue, size, target int) string {
	return fmt.Sprintf("%s joined queue #%d (%d/%d)", name, queue+1, size, target)
}

func FormatMatchCreated(m *domain.MatchRecord, players map[string]domain.Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match #%d is ready. %s %s on %s", m.ID, m.MapEmoji, m.MapMode, m.MapName)
	for _, side := range []struct {
		team domain.Team
		ids  []string
	}{
		{domain.Team1, m.Team1IDs},
		{domain.Team2, m.Team2IDs},
	} {
		names := make([]string, 0, len(side.ids))
		for _, id := range side.ids {
			names = append(names, displayName(id, players))
		}
		fmt.Fprintf(&b, "\nTeam %s: %s", side.team.DisplayName(), strings.Join(names, ", "))
	}
	return b.String()
}

func FormatRoundSummary(team domain.Team, team1Score, team2Score int) string {
	return fmt.Sprintf("Round won by team %s. Series score: %d-%d.", team.DisplayName(), team1Score, team2Score)
}

// FormatFinalSummary lists every rating change, winners first.
func FormatFinalSummary(m *domain.MatchRecord, settlements []rating.Settlement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match #%d is over. Team %s wins the series %d-%d.",
		m.ID, m.Winner.DisplayName(), m.Team1Score, m.Team2Score)

	for _, won := range []bool{true, false} {
		for _, st := range settlements {
			if st.Change.Won != won {
				continue
			}
			fmt.Fprintf(&b, "\n%s %+d → %d", st.Player.Name, st.Change.Delta, st.Change.After)
		}
	}
	return b.String()
}

func FormatCancelled(m *domain.MatchRecord) string {
	return fmt.Sprintf("Match #%d was cancelled. No ratings changed.", m.ID)
}

func FormatTimedOut(m *domain.MatchRecord) string {
	return fmt.Sprintf("Match #%d timed out without a result and was cancelled. No ratings changed.", m.ID)
}

func displayName(id string, players map[string]domain.Player) string {
	if p, ok := players[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}
