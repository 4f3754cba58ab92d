package game

import (
	"sort"
	"sync"
	"time"

	"hidden_mines/internal/domain"
)

// Game is one play-through against the shared grid. It only keeps per-cell
// disclosure state, never secrets.
type Game struct {
	ID            uint64
	Owner         domain.Actor
	Epoch         uint64
	StartedAt     time.Time
	EndedAt       time.Time
	Cells         [domain.TotalCells]domain.CellState
	RevealedCount int
	SafeRevealed  int
	State         domain.GameState
}

func (g *Game) summary() domain.GameSummary {
	return domain.GameSummary{
		ID:            g.ID,
		Owner:         g.Owner,
		Epoch:         g.Epoch,
		StartedAt:     g.StartedAt,
		EndedAt:       g.EndedAt,
		RevealedCount: g.RevealedCount,
		SafeRevealed:  g.SafeRevealed,
		State:         g.State,
	}
}

// Board is the registry of all games, keyed by increasing id.
type Board struct {
	mu     sync.RWMutex
	games  map[uint64]*Game
	lastID uint64
	// actor -> ids of its active games, ascending
	active map[domain.Actor][]uint64
}

func NewBoard() *Board {
	return &Board{
		games:  make(map[uint64]*Game),
		active: make(map[domain.Actor][]uint64),
	}
}

// Start creates an active game for actor. Starting a second game while one
// is active is allowed here; callers decide whether to prevent it.
func (b *Board) Start(actor domain.Actor, epoch uint64, now time.Time) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	g := &Game{
		ID:        b.lastID,
		Owner:     actor,
		Epoch:     epoch,
		StartedAt: now,
		State:     domain.GameActive,
	}
	b.games[g.ID] = g
	b.active[actor] = append(b.active[actor], g.ID)
	return g.ID
}

// CheckReveal validates a reveal request without changing anything and
// returns the epoch the game was started in.
func (b *Board) CheckReveal(id uint64, cell int, actor domain.Actor) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	g, err := b.checkReveal(id, cell, actor)
	if err != nil {
		return 0, err
	}
	return g.Epoch, nil
}

// RequestReveal moves a hidden cell to pending.
func (b *Board) RequestReveal(id uint64, cell int, actor domain.Actor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.checkReveal(id, cell, actor)
	if err != nil {
		return err
	}
	g.Cells[cell] = domain.CellPending
	return nil
}

func (b *Board) checkReveal(id uint64, cell int, actor domain.Actor) (*Game, error) {
	g, ok := b.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	if g.State != domain.GameActive {
		return nil, domain.ErrGameNotActive
	}
	if g.Owner != actor {
		return nil, domain.ErrNotOwner
	}
	if !domain.ValidCell(cell) {
		return nil, domain.ErrInvalidCellIndex
	}
	if g.Cells[cell] != domain.CellHidden {
		return nil, domain.ErrCellNotHidden
	}
	return g, nil
}

// ApplyDisclosure reveals a pending cell. The reveal that reaches the win
// threshold ends the game in the same call.
func (b *Board) ApplyDisclosure(id uint64, cell int, isMine bool, now time.Time) (domain.Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.pendingCell(id, cell)
	if err != nil {
		return domain.Outcome{}, err
	}

	g.RevealedCount++
	if isMine {
		g.Cells[cell] = domain.CellRevealedMine
		b.finish(g, domain.GameLost, now)
	} else {
		g.Cells[cell] = domain.CellRevealedSafe
		g.SafeRevealed++
		if g.SafeRevealed == domain.SafeToClear {
			b.finish(g, domain.GameWon, now)
		}
	}

	out := domain.Outcome{GameID: g.ID, Cell: cell, IsMine: isMine, State: g.State}
	if g.State == domain.GameWon {
		out.Elapsed = g.EndedAt.Sub(g.StartedAt)
	}
	return out, nil
}

// CancelPending returns a pending cell to hidden.
func (b *Board) CancelPending(id uint64, cell int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, err := b.pendingCell(id, cell)
	if err != nil {
		return err
	}
	g.Cells[cell] = domain.CellHidden
	return nil
}

func (b *Board) pendingCell(id uint64, cell int) (*Game, error) {
	g, ok := b.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	if g.State != domain.GameActive {
		return nil, domain.ErrGameNotActive
	}
	if !domain.ValidCell(cell) {
		return nil, domain.ErrInvalidCellIndex
	}
	if g.Cells[cell] != domain.CellPending {
		return nil, domain.ErrCellNotPending
	}
	return g, nil
}

// finish must be called with the write lock held.
func (b *Board) finish(g *Game, state domain.GameState, now time.Time) {
	g.State = state
	g.EndedAt = now

	ids := b.active[g.Owner]
	for i, id := range ids {
		if id == g.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(b.active, g.Owner)
	} else {
		b.active[g.Owner] = ids
	}
}

func (b *Board) Cell(id uint64, cell int) (domain.CellState, error) {
	if !domain.ValidCell(cell) {
		return domain.CellHidden, domain.ErrInvalidCellIndex
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.games[id]
	if !ok {
		return domain.CellHidden, domain.ErrGameNotFound
	}
	return g.Cells[cell], nil
}

// Snapshot returns all cell states in index order.
func (b *Board) Snapshot(id uint64) ([]domain.CellState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	out := make([]domain.CellState, domain.TotalCells)
	copy(out, g.Cells[:])
	return out, nil
}

func (b *Board) Summary(id uint64) (domain.GameSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.games[id]
	if !ok {
		return domain.GameSummary{}, domain.ErrGameNotFound
	}
	return g.summary(), nil
}

// ActiveFor returns an active game of actor. With several active games the
// lowest id wins.
func (b *Board) ActiveFor(actor domain.Actor) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.active[actor]
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Games lists the summaries of every game owned by actor, newest first.
func (b *Board) Games(actor domain.Actor) []domain.GameSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.GameSummary
	for _, g := range b.games {
		if g.Owner == actor {
			out = append(out, g.summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.games)
}
