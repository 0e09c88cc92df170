package service

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"league-matchmaker/internal/config"
	"league-matchmaker/internal/constants"
	"league-matchmaker/internal/domain"
	"league-matchmaker/internal/lifecycle"
	"league-matchmaker/internal/queue"

	"github.com/rs/zerolog"
)

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mu sync.Mutex

	defaultRating int
	players       map[string]domain.Player
	matches       map[int64]*domain.MatchRecord
	history       []domain.RatingChange
	nextID        int64

	createErr error
	cancelErr error

	// run outside the lock before the call does its work
	beforeCreate func()
	beforeSettle func()

	settleCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		defaultRating: constants.DefaultRating,
		players:       make(map[string]domain.Player),
		matches:       make(map[int64]*domain.MatchRecord),
	}
}

func (f *fakeStore) seed(p domain.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Division == "" {
		p.Division = constants.DefaultDivision
	}
	f.players[p.ID] = p
}

func (f *fakeStore) player(id string) domain.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[id]
}

func (f *fakeStore) GetPlayers(_ context.Context, ids []string) (map[string]domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.Player, len(ids))
	for _, id := range ids {
		if p, ok := f.players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) EnsurePlayer(_ context.Context, id, name, division string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		p = domain.Player{ID: id, Name: "Player " + id, Rating: f.defaultRating, CreatedAt: time.Now()}
	}
	if name != "" {
		p.Name = name
	}
	p.Division = division
	f.players[id] = p
	return &p, nil
}

func (f *fakeStore) HasPendingMatch(_ context.Context, playerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if _, ok := m.TeamOf(playerID); ok && m.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateMatch(_ context.Context, team1, team2 []string, info domain.MapInfo) (*domain.MatchRecord, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	m := &domain.MatchRecord{
		ID:        f.nextID,
		MapMode:   info.Mode,
		MapName:   info.Name,
		MapEmoji:  info.Emoji,
		Team1IDs:  slices.Clone(team1),
		Team2IDs:  slices.Clone(team2),
		Status:    domain.MatchPending,
		CreatedAt: time.Now(),
	}
	f.matches[m.ID] = m
	return clone(m), nil
}

func (f *fakeStore) GetMatch(_ context.Context, id int64) (*domain.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (f *fakeStore) PendingMatches(_ context.Context) ([]*domain.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.MatchRecord
	for _, m := range f.matches {
		if m.IsPending() {
			out = append(out, clone(m))
		}
	}
	slices.SortFunc(out, func(a, b *domain.MatchRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// addMatch stores a match as an earlier run would have left it.
func (f *fakeStore) addMatch(m domain.MatchRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[m.ID] = clone(&m)
	f.nextID = max(f.nextID, m.ID)
}

func (f *fakeStore) UpdateSeriesScore(_ context.Context, id int64, team1Score, team2Score int) (*domain.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok || !m.IsPending() {
		return nil, nil
	}
	m.Team1Score, m.Team2Score = team1Score, team2Score
	return clone(m), nil
}

func (f *fakeStore) CompleteMatch(_ context.Context, id int64, winner domain.Team) (*domain.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete(id, winner), nil
}

func (f *fakeStore) complete(id int64, winner domain.Team) *domain.MatchRecord {
	m, ok := f.matches[id]
	if !ok || !m.IsPending() {
		return nil
	}
	now := time.Now()
	m.Status = domain.MatchCompleted
	m.Winner = winner
	m.CompletedAt = &now
	return clone(m)
}

func (f *fakeStore) SettleMatch(_ context.Context, id int64, result domain.MatchResult, rate domain.Rater) (*domain.MatchRecord, error) {
	if f.beforeSettle != nil {
		f.beforeSettle()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok || !m.IsPending() {
		return nil, nil
	}

	players := make(map[string]domain.Player)
	for _, pid := range m.Participants() {
		if p, ok := f.players[pid]; ok {
			players[pid] = p
		}
	}
	updates, changes, err := rate(players)
	if err != nil {
		return nil, err
	}

	f.settleCalls++
	m.Team1Score, m.Team2Score = result.Team1Score, result.Team2Score
	done := f.complete(id, result.Winner)
	f.applyUpdates(updates)
	f.history = append(f.history, changes...)
	return done, nil
}

func (f *fakeStore) CancelMatch(_ context.Context, id int64) (*domain.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	m, ok := f.matches[id]
	if !ok || !m.IsPending() {
		return nil, nil
	}
	now := time.Now()
	m.Status = domain.MatchCancelled
	m.CompletedAt = &now
	return clone(m), nil
}

func (f *fakeStore) ApplyPlayerUpdates(_ context.Context, updates []domain.PlayerUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyUpdates(updates)
	return nil
}

func (f *fakeStore) applyUpdates(updates []domain.PlayerUpdate) {
	for _, u := range updates {
		p := f.players[u.ID]
		p.Rating, p.Wins, p.Losses = u.Rating, u.Wins, u.Losses
		f.players[u.ID] = p
	}
}

func (f *fakeStore) LeaderboardPage(_ context.Context, limit, offset int) ([]domain.Player, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]domain.Player, 0, len(f.players))
	for _, p := range f.players {
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b domain.Player) int {
		return cmp.Or(
			cmp.Compare(b.Rating, a.Rating),
			cmp.Compare(b.Wins, a.Wins),
			cmp.Compare(a.Losses, b.Losses),
			cmp.Compare(a.Name, b.Name),
		)
	})
	if offset >= len(all) {
		return []domain.Player{}, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

func (f *fakeStore) RatingHistory(_ context.Context, playerID string, limit int) ([]domain.RatingChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RatingChange
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if f.history[i].PlayerID == playerID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

func clone(m *domain.MatchRecord) *domain.MatchRecord {
	cp := *m
	cp.Team1IDs = slices.Clone(m.Team1IDs)
	cp.Team2IDs = slices.Clone(m.Team2IDs)
	return &cp
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Publish(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

type testEnv struct {
	cfg      *config.Config
	store    *fakeStore
	queues   *queue.Manager
	book     *lifecycle.Book
	notifier *recordingNotifier
	queue    *QueueService
	match    *MatchService
	player   *PlayerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		APIToken:         "token",
		QueueTargetSize:  6,
		QueueThresholds:  []int{1100},
		KFactor:          30,
		SeriesWins:       2,
		DefaultRating:    1000,
		DefaultDivision:  "solo",
		VoteTimeout:      time.Hour,
		TierDistribution: constants.DefaultTierDistribution,
		Ranks:            constants.Ranks,
	}

	env := &testEnv{
		cfg:      cfg,
		store:    newFakeStore(),
		queues:   queue.NewManager(cfg.QueueThresholds),
		book:     lifecycle.NewBook(cfg.VoteTimeout),
		notifier: &recordingNotifier{},
	}
	logger := zerolog.Nop()
	env.queue = NewQueueService(env.store, env.queues, env.book, env.notifier, cfg, logger)
	env.queue.intN = func(int) int { return 0 }
	env.match = NewMatchService(env.store, env.book, env.notifier, cfg, logger)
	env.player = NewPlayerService(env.store, env.queues, cfg, logger)
	return env
}

// lowBand are six players under the Gold floor, strongest first.
var lowBand = []domain.Player{
	{ID: "p1", Name: "Ana", Rating: 1090},
	{ID: "p2", Name: "Ben", Rating: 1080},
	{ID: "p3", Name: "Cai", Rating: 1050},
	{ID: "p4", Name: "Dee", Rating: 1000},
	{ID: "p5", Name: "Eli", Rating: 950},
	{ID: "p6", Name: "Fay", Rating: 900},
}

func (e *testEnv) seed(players ...domain.Player) {
	for _, p := range players {
		e.store.seed(p)
	}
}
