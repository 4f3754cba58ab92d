// Package tracker enforces at most one outstanding disclosure request per
// actor.
package tracker

import (
	"sync"
	"time"

	"hidden_mines/internal/domain"
)

// Pending is the single disclosure slot of an actor.
type Pending struct {
	GameID      uint64        `json:"game_id"`
	Cell        int           `json:"cell"`
	Handle      domain.Handle `json:"handle"`
	RequestedAt time.Time     `json:"requested_at"`
	Active      bool          `json:"active"`
}

// Expired reports whether the request is older than ttl. A zero ttl never
// expires.
func (p Pending) Expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && p.Active && now.Sub(p.RequestedAt) > ttl
}

type Tracker struct {
	mu    sync.Mutex
	slots map[domain.Actor]Pending
}

func New() *Tracker {
	return &Tracker{slots: make(map[domain.Actor]Pending)}
}

// Begin records a pending disclosure. Check and set happen under one lock.
func (t *Tracker) Begin(actor domain.Actor, gameID uint64, cell int, handle domain.Handle, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.slots[actor]; ok && p.Active {
		return domain.ErrAlreadyPending
	}
	t.slots[actor] = Pending{
		GameID:      gameID,
		Cell:        cell,
		Handle:      handle,
		RequestedAt: at,
		Active:      true,
	}
	return nil
}

// Clear removes the actor's record, whether it completed or was cancelled.
func (t *Tracker) Clear(actor domain.Actor) (Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.slots[actor]
	if !ok || !p.Active {
		return Pending{}, domain.ErrNoPending
	}
	delete(t.slots, actor)
	return p, nil
}

func (t *Tracker) Peek(actor domain.Actor) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.slots[actor]
	if !ok || !p.Active {
		return Pending{}, false
	}
	return p, true
}

// Len returns the number of active records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
