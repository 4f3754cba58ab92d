// Package ranking keeps the append-only record of winning runs.
package ranking

import (
	"sort"
	"sync"
	"time"

	"hidden_mines/internal/domain"
)

type Ledger struct {
	mu      sync.RWMutex
	entries []domain.RankingEntry
	lastSeq uint64
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a run and returns it with its sequence number. Elapsed is
// trusted as given.
func (l *Ledger) Append(actor domain.Actor, elapsed time.Duration, at time.Time) domain.RankingEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSeq++
	e := domain.RankingEntry{
		Seq:         l.lastSeq,
		Actor:       actor,
		Elapsed:     elapsed,
		CompletedAt: at,
	}
	l.entries = append(l.entries, e)
	return e
}

// Restore appends a stored entry as is. Entries must arrive in Seq order;
// later Appends continue after the highest Seq seen.
func (l *Ledger) Restore(e domain.RankingEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if e.Seq > l.lastSeq {
		l.lastSeq = e.Seq
	}
}

// Top returns the first k entries in insertion order, not sorted by time.
func (l *Ledger) Top(k int) []domain.RankingEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if k > len(l.entries) {
		k = len(l.entries)
	}
	if k <= 0 {
		return []domain.RankingEntry{}
	}
	out := make([]domain.RankingEntry, k)
	copy(out, l.entries[:k])
	return out
}

// Best returns up to k entries ordered by clear time. Equal times keep
// insertion order.
func (l *Ledger) Best(k int) []domain.RankingEntry {
	l.mu.RLock()
	all := make([]domain.RankingEntry, len(l.entries))
	copy(all, l.entries)
	l.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Elapsed < all[j].Elapsed })
	if k > len(all) {
		k = len(all)
	}
	if k <= 0 {
		return []domain.RankingEntry{}
	}
	return all[:k]
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
