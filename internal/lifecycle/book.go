package lifecycle

import (
	"maps"
	"sort"
	"sync"
	"time"

	"league-matchmaker/internal/domain"
)

// Ballot is the vote tally of one match's current round. A ballot handed out
// by Book.Acquire is locked; the holder must call Release.
type Ballot struct {
	mu sync.Mutex

	book     *Book
	matchID  int64
	votes    map[string]domain.VoteLabel
	deadline time.Time
	closed   bool
}

func (b *Ballot) MatchID() int64 { return b.matchID }

func (b *Ballot) Deadline() time.Time { return b.deadline }

// Record stores the voter's choice, replacing any earlier one.
// It returns the previous choice if there was one.
func (b *Ballot) Record(voterID string, label domain.VoteLabel) (domain.VoteLabel, bool) {
	prev, ok := b.votes[voterID]
	b.votes[voterID] = label
	return prev, ok
}

func (b *Ballot) Votes() map[string]domain.VoteLabel {
	return maps.Clone(b.votes)
}

func (b *Ballot) Len() int { return len(b.votes) }

// Reset clears the tally for a new round of the same series.
func (b *Ballot) Reset() {
	clear(b.votes)
}

// Close drops the ballot from its book once the match leaves pending.
func (b *Ballot) Close() {
	if b.closed {
		return
	}
	b.closed = true
	clear(b.votes)
	b.book.remove(b)
}

func (b *Ballot) Release() {
	b.mu.Unlock()
}

// Book tracks the ballots of every active match.
type Book struct {
	mu      sync.Mutex
	ballots map[int64]*Ballot
	timeout time.Duration
	now     func() time.Time
}

func NewBook(timeout time.Duration) *Book {
	return &Book{
		ballots: make(map[int64]*Ballot),
		timeout: timeout,
		now:     time.Now,
	}
}

// Track starts the voting clock for a new match. Tracking an already
// tracked match keeps its original deadline.
func (k *Book) Track(matchID int64) time.Time {
	return k.TrackSince(matchID, k.now())
}

// TrackSince tracks a match whose voting window opened at start. An already
// tracked match keeps its deadline.
func (k *Book) TrackSince(matchID int64, start time.Time) time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.ballots[matchID]; ok {
		return b.deadline
	}
	return k.create(matchID, start).deadline
}

// Acquire returns the match's ballot, locked. Matches that are not tracked
// yet, for example after a restart, get a fresh ballot and deadline.
func (k *Book) Acquire(matchID int64) *Ballot {
	for {
		k.mu.Lock()
		b := k.getOrCreate(matchID)
		k.mu.Unlock()

		b.mu.Lock()
		if !b.closed {
			return b
		}
		// closed while we waited; the next iteration sees a new ballot
		b.mu.Unlock()
	}
}

// Expired returns tracked matches whose deadline is before now, oldest first.
func (k *Book) Expired(now time.Time) []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	var ids []int64
	for id, b := range k.ballots {
		if b.deadline.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (k *Book) Tracked() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.ballots)
}

func (k *Book) IsTracked(matchID int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.ballots[matchID]
	return ok
}

func (k *Book) getOrCreate(matchID int64) *Ballot {
	if b, ok := k.ballots[matchID]; ok {
		return b
	}
	return k.create(matchID, k.now())
}

func (k *Book) create(matchID int64, start time.Time) *Ballot {
	b := &Ballot{
		book:     k,
		matchID:  matchID,
		votes:    make(map[string]domain.VoteLabel),
		deadline: start.Add(k.timeout),
	}
	k.ballots[matchID] = b
	return b
}

func (k *Book) remove(b *Ballot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if cur, ok := k.ballots[b.matchID]; ok && cur == b {
		delete(k.ballots, b.matchID)
	}
}
