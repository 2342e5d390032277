package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/infra/observability"
)

// lockTable hands out one mutex per serialization domain, keyed by id
// (a guild id for single-guild operations, a party id for party-scoped
// ones). Mutexes are created on demand and kept for the process lifetime;
// the table grows with the number of distinct guilds, which is bounded.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (t *lockTable) mutex(id uuid.UUID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[id]
	if !ok {
		m = &sync.Mutex{}
		t.locks[id] = m
	}
	return m
}

// lock enters the id's serialization domain and returns the release func.
func (t *lockTable) lock(id uuid.UUID) func() {
	m := t.mutex(id)
	start := time.Now()
	m.Lock()
	observability.LockWait.Observe(time.Since(start).Seconds())
	return m.Unlock
}

// lockPair enters both domains in canonical order, so two callers locking
// the same pair from opposite ends can never deadlock.
func (t *lockTable) lockPair(a, b uuid.UUID) func() {
	if a == b {
		return t.lock(a)
	}
	first, second := domain.OrderPair(a, b)
	m1, m2 := t.mutex(first), t.mutex(second)
	start := time.Now()
	m1.Lock()
	m2.Lock()
	observability.LockWait.Observe(time.Since(start).Seconds())
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}

// lockMany enters every listed domain in the same canonical order lockPair
// uses, so it composes deadlock-free with pair and single locks. Duplicates
// are collapsed.
func (t *lockTable) lockMany(ids []uuid.UUID) func() {
	seen := make(map[uuid.UUID]bool, len(ids))
	sorted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	muts := make([]*sync.Mutex, len(sorted))
	for i, id := range sorted {
		muts[i] = t.mutex(id)
	}
	start := time.Now()
	for _, m := range muts {
		m.Lock()
	}
	observability.LockWait.Observe(time.Since(start).Seconds())
	return func() {
		for i := len(muts) - 1; i >= 0; i-- {
			muts[i].Unlock()
		}
	}
}
