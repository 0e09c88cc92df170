// Package queue holds the rating-banded FIFO admission queues.
package queue

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	ErrAlreadyQueued = errors.New("player is already in a queue")
	ErrUnknownQueue  = errors.New("unknown queue")
)

type Entry struct {
	PlayerID string
	Rating   int
	JoinedAt time.Time
}

// Band describes the rating range a queue admits. Max is -1 when unbounded.
type Band struct {
	Index int
	Min   int
	Max   int
}

func (b Band) String() string {
	if b.Max < 0 {
		return fmt.Sprintf(">= %d", b.Min)
	}
	if b.Min == 0 {
		return fmt.Sprintf("< %d", b.Max)
	}
	return fmt.Sprintf("%d-%d", b.Min, b.Max-1)
}

// Manager owns every queue. A single mutex guards all of them together with
// the membership index, so a player can never sit in two queues.
type Manager struct {
	mu sync.Mutex

	thresholds []int
	queues     [][]Entry

	// player id -> queue index
	members map[string]int

	now func() time.Time
}

// NewManager builds len(thresholds)+1 queues. Queue 0 takes ratings below
// the first threshold, the last queue takes everything at or above the last.
func NewManager(thresholds []int) *Manager {
	t := slices.Clone(thresholds)
	sort.Ints(t)
	t = slices.Compact(t)

	return &Manager{
		thresholds: t,
		queues:     make([][]Entry, len(t)+1),
		members:    make(map[string]int),
		now:        time.Now,
	}
}

func (m *Manager) Count() int {
	return len(m.thresholds) + 1
}

// Route returns the queue index a rating is admitted to.
func (m *Manager) Route(rating int) int {
	return sort.Search(len(m.thresholds), func(i int) bool {
		return m.thresholds[i] > rating
	})
}

func (m *Manager) Bands() []Band {
	bands := make([]Band, m.Count())
	for i := range bands {
		b := Band{Index: i, Min: 0, Max: -1}
		if i > 0 {
			b.Min = m.thresholds[i-1]
		}
		if i < len(m.thresholds) {
			b.Max = m.thresholds[i]
		}
		bands[i] = b
	}
	return bands
}

// Enqueue appends the player to the queue for their rating and returns the
// queue index and its new length.
func (m *Manager) Enqueue(playerID string, rating int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.members[playerID]; ok {
		return idx, len(m.queues[idx]), ErrAlreadyQueued
	}

	idx := m.Route(rating)
	m.queues[idx] = append(m.queues[idx], Entry{
		PlayerID: playerID,
		Rating:   rating,
		JoinedAt: m.now(),
	})
	m.members[playerID] = idx
	return idx, len(m.queues[idx]), nil
}

// Dequeue removes the player from whichever queue holds them.
// The boolean is false when the player was not queued.
func (m *Manager) Dequeue(playerID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.members[playerID]
	if !ok {
		return -1, false
	}

	m.queues[idx] = slices.DeleteFunc(m.queues[idx], func(e Entry) bool {
		return e.PlayerID == playerID
	})
	delete(m.members, playerID)
	return idx, true
}

func (m *Manager) Contains(playerID string) bool {
	_, ok := m.Locate(playerID)
	return ok
}

// Locate returns the index of the queue holding the player.
func (m *Manager) Locate(playerID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.members[playerID]
	return idx, ok
}

// DrainIfFull removes the first size entries of the queue when it holds at
// least that many, and returns nil otherwise. Callers never see a partial batch.
func (m *Manager) DrainIfFull(index, size int) ([]Entry, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.queues) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQueue, index)
	}
	if len(m.queues[index]) < size {
		return nil, nil
	}

	batch := slices.Clone(m.queues[index][:size])
	m.queues[index] = slices.Clone(m.queues[index][size:])
	for _, e := range batch {
		delete(m.members, e.PlayerID)
	}
	return batch, nil
}

// Restore puts a drained batch back at the head of its queue, in order.
// Entries whose player joined another queue in the meantime are dropped.
func (m *Manager) Restore(index int, batch []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.queues) {
		return fmt.Errorf("%w: %d", ErrUnknownQueue, index)
	}

	head := make([]Entry, 0, len(batch))
	for _, e := range batch {
		if _, ok := m.members[e.PlayerID]; ok {
			continue
		}
		head = append(head, e)
		m.members[e.PlayerID] = index
	}
	m.queues[index] = append(head, m.queues[index]...)
	return nil
}

// Snapshot returns a copy of every queue, taken under the lock.
func (m *Manager) Snapshot() [][]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]Entry, len(m.queues))
	for i, q := range m.queues {
		out[i] = slices.Clone(q)
	}
	return out
}

func (m *Manager) Len(index int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.queues) {
		return 0
	}
	return len(m.queues[index])
}
