package server

import (
	"time"

	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/service"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type joinRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Division string `json:"division"`
}

type leaveRequest struct {
	PlayerID string `json:"player_id"`
}

type voteRequest struct {
	PlayerID string `json:"player_id"`
	Label    string `json:"label"`
}

type playerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	WinRate   float64   `json:"win_rate"`
	Division  string    `json:"division"`
	UpdatedAt time.Time `json:"updated_at"`
}

type matchView struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	MapMode     string     `json:"map_mode"`
	MapName     string     `json:"map_name"`
	MapEmoji    string     `json:"map_emoji,omitempty"`
	Team1       []string   `json:"team1"`
	Team2       []string   `json:"team2"`
	Team1Score  int        `json:"team1_score"`
	Team2Score  int        `json:"team2_score"`
	Winner      string     `json:"winner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ratingChangeView struct {
	MatchID  int64  `json:"match_id"`
	PlayerID string `json:"player_id"`
	Before   int    `json:"before"`
	Delta    int    `json:"delta"`
	After    int    `json:"after"`
	Won      bool   `json:"won"`
}

type joinResponse struct {
	Status  string      `json:"status"`
	Queue   int         `json:"queue"`
	Size    int         `json:"size"`
	Target  int         `json:"target"`
	Message string      `json:"message,omitempty"`
	Player  *playerView `json:"player,omitempty"`
	Matches []matchView `json:"matches"`
}

type queueEntryView struct {
	PlayerID string    `json:"player_id"`
	Rating   int       `json:"rating"`
	JoinedAt time.Time `json:"joined_at"`
}

type queueView struct {
	Index   int              `json:"index"`
	Band    string           `json:"band"`
	Players []queueEntryView `json:"players"`
}

type queueStatusResponse struct {
	Target int         `json:"target"`
	Queues []queueView `json:"queues"`
}

type voteResponse struct {
	Result      string             `json:"result"`
	Replaced    bool               `json:"replaced"`
	Outcome     string             `json:"outcome"`
	LeaderVotes int                `json:"leader_votes"`
	Majority    int                `json:"majority"`
	Match       *matchView         `json:"match,omitempty"`
	Changes     []ratingChangeView `json:"changes,omitempty"`
	Summary     string             `json:"summary,omitempty"`
}

type profileResponse struct {
	Player    playerView         `json:"player"`
	Rank      string             `json:"rank"`
	RankEmoji string             `json:"rank_emoji"`
	Queued    bool               `json:"queued"`
	History   []ratingChangeView `json:"history"`
}

type leaderboardEntryView struct {
	Position int        `json:"position"`
	Tier     string     `json:"tier"`
	Rank     string     `json:"rank"`
	Player   playerView `json:"player"`
}

type leaderboardResponse struct {
	Page    int                    `json:"page"`
	Pages   int                    `json:"pages"`
	Total   int                    `json:"total"`
	Entries []leaderboardEntryView `json:"entries"`
}

type mapsResponse struct {
	Text string `json:"text"`
}

func toPlayerView(p domain.Player) playerView {
	return playerView{
		ID:        p.ID,
		Name:      p.Name,
		Rating:    p.Rating,
		Wins:      p.Wins,
		Losses:    p.Losses,
		WinRate:   p.WinRate(),
		Division:  p.Division,
		UpdatedAt: p.UpdatedAt,
	}
}

func toMatchView(m *domain.MatchRecord) matchView {
	return matchView{
		ID:          m.ID,
		Status:      string(m.Status),
		MapMode:     m.MapMode,
		MapName:     m.MapName,
		MapEmoji:    m.MapEmoji,
		Team1:       m.Team1IDs,
		Team2:       m.Team2IDs,
		Team1Score:  m.Team1Score,
		Team2Score:  m.Team2Score,
		Winner:      string(m.Winner),
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}

func toChangeViews(changes []domain.RatingChange) []ratingChangeView {
	out := make([]ratingChangeView, len(changes))
	for i, c := range changes {
		out[i] = ratingChangeView{
			MatchID:  c.MatchID,
			PlayerID: c.PlayerID,
			Before:   c.Before,
			Delta:    c.Delta,
			After:    c.After,
			Won:      c.Won,
		}
	}
	return out
}

func toJoinResponse(res *service.JoinResult) joinResponse {
	out := joinResponse{
		Status:  res.Status.String(),
		Queue:   res.Queue,
		Size:    res.Size,
		Target:  res.Target,
		Message: res.Message,
		Matches: make([]matchView, 0, len(res.Matches)),
	}
	if res.Player != nil {
		v := toPlayerView(*res.Player)
		out.Player = &v
	}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, toMatchView(m))
	}
	return out
}

func toQueueStatus(status service.QueueStatus) queueStatusResponse {
	out := queueStatusResponse{
		Target: status.Target,
		Queues: make([]queueView, len(status.Queues)),
	}
	for i, q := range status.Queues {
		players := make([]queueEntryView, len(q.Entries))
		for j, e := range q.Entries {
			players[j] = queueEntryView{PlayerID: e.PlayerID, Rating: e.Rating, JoinedAt: e.JoinedAt}
		}
		out.Queues[i] = queueView{Index: q.Band.Index, Band: q.Band.String(), Players: players}
	}
	return out
}

func toVoteResponse(out *service.VoteOutcome) voteResponse {
	resp := voteResponse{
		Result:      out.Result.String(),
		Replaced:    out.Replaced,
		Outcome:     out.Decision.Outcome.String(),
		LeaderVotes: out.Decision.LeaderVotes,
		Majority:    out.Decision.Majority,
		Summary:     out.Summary,
	}
	if out.Match != nil {
		v := toMatchView(out.Match)
		resp.Match = &v
	}
	if len(out.Changes) > 0 {
		resp.Changes = toChangeViews(out.Changes)
	}
	return resp
}

func toProfileResponse(p *service.Profile) profileResponse {
	return profileResponse{
		Player:    toPlayerView(p.Player),
		Rank:      p.Rank.Name,
		RankEmoji: p.Rank.Emoji,
		Queued:    p.Queued,
		History:   toChangeViews(p.History),
	}
}

func toLeaderboardResponse(b *service.Leaderboard) leaderboardResponse {
	out := leaderboardResponse{
		Page:    b.Page,
		Pages:   b.Pages,
		Total:   b.Total,
		Entries: make([]leaderboardEntryView, len(b.Entries)),
	}
	for i, e := range b.Entries {
		out.Entries[i] = leaderboardEntryView{
			Position: e.Position,
			Tier:     e.Tier,
			Rank:     e.Rank.Name,
			Player:   toPlayerView(e.Player),
		}
	}
	return out
}
