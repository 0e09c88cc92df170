package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/database"
	"league-matchmaker/internal/lifecycle"
	"league-matchmaker/internal/notify"
	"league-matchmaker/internal/queue"
	"league-matchmaker/internal/repository"
	"league-matchmaker/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		APIToken:         testToken,
		QueueTargetSize:  4,
		QueueThresholds:  []int{1100},
		KFactor:          30,
		SeriesWins:       2,
		DefaultRating:    1000,
		DefaultDivision:  "solo",
		VoteTimeout:      time.Hour,
		TierDistribution: constants.DefaultTierDistribution,
		Ranks:            constants.Ranks,
	}
	logger := zerolog.Nop()

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db, cfg, logger)
	queues := queue.NewManager(cfg.QueueThresholds)
	book := lifecycle.NewBook(cfg.VoteTimeout)
	notifier := notify.NewLogNotifier(logger)

	srv := NewServer(
		service.NewQueueService(store, queues, book, notifier, cfg, logger),
		service.NewMatchService(store, book, notifier, cfg, logger),
		service.NewPlayerService(store, queues, cfg, logger),
		db,
		cfg,
		logger,
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func joinPlayers(t *testing.T, ts *httptest.Server, ids ...string) joinResponse {
	t.Helper()
	var last joinResponse
	for _, id := range ids {
		last = joinResponse{}
		code := call(t, ts, http.MethodPost, "/v1/queue/join", joinRequest{PlayerID: id, Name: "name-" + id}, &last)
		require.Equal(t, http.StatusOK, code, id)
	}
	return last
}

func TestHealthzIsOpen(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/v1/maps")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJoinAndQueueStatus(t *testing.T) {
	ts := newTestServer(t)

	res := joinPlayers(t, ts, "a")
	assert.Equal(t, "queued", res.Status)
	assert.Equal(t, "name-a joined queue #1 (1/4)", res.Message)

	var dup joinResponse
	code := call(t, ts, http.MethodPost, "/v1/queue/join", joinRequest{PlayerID: "a"}, &dup)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_queued", dup.Status)

	var status queueStatusResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/v1/queue", nil, &status))
	require.Len(t, status.Queues, 2)
	assert.Equal(t, 4, status.Target)
	require.Len(t, status.Queues[0].Players, 1)
	assert.Equal(t, "a", status.Queues[0].Players[0].PlayerID)

	var errResp errorResponse
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, "/v1/queue/join", joinRequest{}, &errResp))
	assert.Equal(t, "player_id is required", errResp.Error)

	assert.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/v1/queue/leave", leaveRequest{PlayerID: "a"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/v1/queue/leave", leaveRequest{PlayerID: "a"}, nil))
}

func TestMatchFlow(t *testing.T) {
	ts := newTestServer(t)

	res := joinPlayers(t, ts, "a", "b", "c", "d")
	require.Len(t, res.Matches, 1)
	match := res.Matches[0]
	assert.Equal(t, []string{"a", "c"}, match.Team1)
	assert.Equal(t, []string{"b", "d"}, match.Team2)

	var pending joinResponse
	assert.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, "/v1/queue/join", joinRequest{PlayerID: "a"}, &pending))
	assert.Equal(t, "pending_match", pending.Status)

	votePath := fmt.Sprintf("/v1/matches/%d/votes", match.ID)

	var bad voteResponse
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, votePath, voteRequest{PlayerID: "a", Label: "blue"}, &bad))
	assert.Equal(t, "invalid_label", bad.Result)
	assert.Equal(t, http.StatusForbidden, call(t, ts, http.MethodPost, votePath, voteRequest{PlayerID: "z", Label: "team1"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/v1/matches/999/votes", voteRequest{PlayerID: "a", Label: "team1"}, nil))

	// four players, majority of three, two rounds
	var out voteResponse
	for round := 1; round <= 2; round++ {
		for _, voter := range []string{"a", "b", "c"} {
			out = voteResponse{}
			require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, votePath, voteRequest{PlayerID: voter, Label: "team2"}, &out))
		}
		if round == 1 {
			assert.Equal(t, "round_won", out.Outcome)
			assert.Equal(t, "Round won by team Red. Series score: 0-1.", out.Summary)
		}
	}
	assert.Equal(t, "series_won", out.Outcome)
	require.NotNil(t, out.Match)
	assert.Equal(t, "completed", out.Match.Status)
	assert.Equal(t, "team2", out.Match.Winner)
	assert.Equal(t, 2, out.Match.Team2Score)
	assert.Len(t, out.Changes, 4)
	assert.Contains(t, out.Summary, "name-b +15 → 1015")

	var late voteResponse
	assert.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, votePath, voteRequest{PlayerID: "d", Label: "team1"}, &late))
	assert.Equal(t, "not_pending", late.Result)

	var profile profileResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/v1/players/b", nil, &profile))
	assert.Equal(t, 1015, profile.Player.Rating)
	assert.Equal(t, 1, profile.Player.Wins)
	assert.Equal(t, "Silver", profile.Rank)
	require.Len(t, profile.History, 1)
	assert.Equal(t, 15, profile.History[0].Delta)

	var board leaderboardResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/v1/leaderboard?page=1", nil, &board))
	assert.Equal(t, 4, board.Total)
	require.Len(t, board.Entries, 4)
	assert.Equal(t, 1015, board.Entries[0].Player.Rating)
	assert.Equal(t, "S", board.Entries[0].Tier)
	assert.Equal(t, 985, board.Entries[3].Player.Rating)

	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodGet, "/v1/leaderboard?page=zero", nil, nil))

	var reset playerView
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/v1/players/b/reset", nil, &reset))
	assert.Equal(t, 1000, reset.Rating)
	assert.Equal(t, 0, reset.Wins)
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/v1/players/nobody/reset", nil, nil))
}

func TestTimeoutEndpoint(t *testing.T) {
	ts := newTestServer(t)

	res := joinPlayers(t, ts, "a", "b", "c", "d")
	require.Len(t, res.Matches, 1)
	path := fmt.Sprintf("/v1/matches/%d/timeout", res.Matches[0].ID)

	var m matchView
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, path, nil, &m))
	assert.Equal(t, "cancelled", m.Status)
	assert.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, path, nil, nil))

	var got matchView
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, fmt.Sprintf("/v1/matches/%d", m.ID), nil, &got))
	assert.Equal(t, "cancelled", got.Status)
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodGet, "/v1/matches/abc", nil, nil))

	// cancelled players can queue again
	again := joinPlayers(t, ts, "a")
	assert.Equal(t, "queued", again.Status)
}

func TestMaps(t *testing.T) {
	ts := newTestServer(t)

	var maps mapsResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/v1/maps", nil, &maps))
	assert.Contains(t, maps.Text, "Gem Grab")
}
