// Package server exposes the matchmaking services as a JSON API for the chat bot.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/database"
	"league-matchmaker/internal/middleware"
	"league-matchmaker/internal/service"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

type Server struct {
	queueSvc  *service.QueueService
	matchSvc  *service.MatchService
	playerSvc *service.PlayerService
	db        *sql.DB
	token     string
	logger    zerolog.Logger
}

func NewServer(
	queueSvc *service.QueueService,
	matchSvc *service.MatchService,
	playerSvc *service.PlayerService,
	db *sql.DB,
	cfg *config.Config,
	logger zerolog.Logger,
) *Server {
	return &Server{
		queueSvc:  queueSvc,
		matchSvc:  matchSvc,
		playerSvc: playerSvc,
		db:        db,
		token:     cfg.APIToken,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// Handler routes /v1 behind bearer auth. The health check is open.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/queue/join", s.handleJoin)
	api.HandleFunc("POST /v1/queue/leave", s.handleLeave)
	api.HandleFunc("GET /v1/queue", s.handleQueueStatus)
	api.HandleFunc("GET /v1/matches/{id}", s.handleGetMatch)
	api.HandleFunc("POST /v1/matches/{id}/votes", s.handleVote)
	api.HandleFunc("POST /v1/matches/{id}/timeout", s.handleTimeout)
	api.HandleFunc("GET /v1/players/{id}", s.handleProfile)
	api.HandleFunc("POST /v1/players/{id}/reset", s.handleReset)
	api.HandleFunc("GET /v1/leaderboard", s.handleLeaderboard)
	api.HandleFunc("GET /v1/maps", s.handleMaps)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/v1/", middleware.BearerAuth(s.token)(api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := database.Ping(r.Context(), s.db); err != nil {
		s.logger.Error().Err(err).Msg("database ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		s.writeError(w, r, http.StatusBadRequest, "player_id is required")
		return
	}

	res, err := s.queueSvc.Join(r.Context(), req.PlayerID, req.Name, req.Division)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Status != service.JoinQueued {
		status = http.StatusConflict
	}
	writeJSON(w, status, toJoinResponse(res))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		s.writeError(w, r, http.StatusBadRequest, "player_id is required")
		return
	}
	if !s.queueSvc.Leave(req.PlayerID) {
		s.writeError(w, r, http.StatusNotFound, "player is not queued")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toQueueStatus(s.queueSvc.Status()))
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.matchID(w, r)
	if !ok {
		return
	}
	m, err := s.matchSvc.Get(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if m == nil {
		s.writeError(w, r, http.StatusNotFound, "match not found")
		return
	}
	writeJSON(w, http.StatusOK, toMatchView(m))
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.matchID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.matchSvc.RegisterVote(r.Context(), id, req.PlayerID, req.Label)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	status := http.StatusOK
	switch out.Result {
	case service.VoteRejectedInvalidLabel:
		status = http.StatusBadRequest
	case service.VoteRejectedNotEligible:
		status = http.StatusForbidden
	case service.VoteRejectedUnknownMatch:
		status = http.StatusNotFound
	case service.VoteRejectedNotPending:
		status = http.StatusConflict
	}
	writeJSON(w, status, toVoteResponse(out))
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.matchID(w, r)
	if !ok {
		return
	}
	m, err := s.matchSvc.Timeout(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if m == nil {
		s.writeError(w, r, http.StatusConflict, "match is not pending")
		return
	}
	writeJSON(w, http.StatusOK, toMatchView(m))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.playerSvc.Profile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if p == nil {
		s.writeError(w, r, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	p, err := s.playerSvc.ResetStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if p == nil {
		s.writeError(w, r, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, toPlayerView(*p))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	board, err := s.playerSvc.Leaderboard(r.Context(), page)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaderboardResponse(board))
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mapsResponse{Text: s.playerSvc.Maps()})
}

func (s *Server) matchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid match id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	s.writeError(w, r, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
