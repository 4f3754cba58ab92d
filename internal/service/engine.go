package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hidden_mines/internal/attest"
	"hidden_mines/internal/auth"
	"hidden_mines/internal/domain"
	"hidden_mines/internal/game"
	"hidden_mines/internal/grid"
	"hidden_mines/internal/logger"
	"hidden_mines/internal/oracle"
	"hidden_mines/internal/ranking"
	"hidden_mines/internal/tracker"

	"github.com/google/uuid"
)

// Publisher receives protocol events after the state change committed.
// Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// Options tunes an Engine. The zero value is valid.
type Options struct {
	// PendingTTL lets a new request replace an actor's disclosure that has
	// waited longer than this. Zero keeps requests until cancelled.
	PendingTTL time.Duration
	// Ledger to append wins to, e.g. one restored from storage.
	Ledger *ranking.Ledger
	Now    func() time.Time
}

// GridStatus is the public view of the secret grid.
type GridStatus struct {
	Initialized bool   `json:"initialized"`
	Epoch       uint64 `json:"epoch"`
	TotalCells  int    `json:"total_cells"`
	MineCount   int    `json:"mine_count"`
}

// Engine is the protocol orchestrator. Every mutating call runs under one
// lock and either fully applies or leaves state untouched.
type Engine struct {
	mu         sync.RWMutex
	grid       *grid.Store
	verifier   attest.Verifier
	oracle     oracle.Oracle
	tracker    *tracker.Tracker
	board      *game.Board
	ledger     *ranking.Ledger
	publishers []Publisher
	pendingTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewEngine(o oracle.Oracle, v attest.Verifier, opts Options) *Engine {
	e := &Engine{
		grid:       grid.NewStore(o),
		verifier:   v,
		oracle:     o,
		tracker:    tracker.New(),
		board:      game.NewBoard(),
		ledger:     opts.Ledger,
		pendingTTL: opts.PendingTTL,
		now:        opts.Now,
		log:        logger.With("component", "engine"),
	}
	if e.ledger == nil {
		e.ledger = ranking.NewLedger()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Subscribe adds a publisher. Not safe to call once requests are served.
func (e *Engine) Subscribe(p Publisher) {
	e.publishers = append(e.publishers, p)
}

// InitializeGrid installs the encrypted mine layout. The oracle import runs
// outside the engine lock; only the table swap is serialized.
func (e *Engine) InitializeGrid(ctx context.Context, cap auth.Capability, inputs []oracle.ExternalInput, proof []byte) (uint64, error) {
	handles, err := e.grid.Convert(ctx, cap, inputs, proof)
	if err != nil {
		return 0, e.reject("initialize", err, "caller", cap.Caller().Hex())
	}

	e.mu.Lock()
	epoch, err := e.grid.Install(handles)
	e.mu.Unlock()
	if err != nil {
		return 0, e.reject("initialize", err, "caller", cap.Caller().Hex())
	}

	e.log.Info("grid initialized", "epoch", epoch, "caller", cap.Caller().Hex())
	e.publish(ctx, e.event(domain.EventGridInitialized, cap.Caller(), 0, nil, map[string]interface{}{"epoch": epoch}))
	return epoch, nil
}

// ResetGrid ends the current epoch. Active games of that epoch can no
// longer request reveals.
func (e *Engine) ResetGrid(ctx context.Context, cap auth.Capability) error {
	e.mu.Lock()
	epoch := e.grid.Epoch()
	err := e.grid.Reset(cap)
	e.mu.Unlock()
	if err != nil {
		return e.reject("reset", err, "caller", cap.Caller().Hex())
	}

	e.log.Info("grid reset", "epoch", epoch, "caller", cap.Caller().Hex())
	e.publish(ctx, e.event(domain.EventGridReset, cap.Caller(), 0, nil, map[string]interface{}{"epoch": epoch}))
	return nil
}

// StartGame creates a game bound to the current grid epoch.
func (e *Engine) StartGame(ctx context.Context, actor domain.Actor) (uint64, error) {
	e.mu.Lock()
	if !e.grid.Initialized() {
		e.mu.Unlock()
		return 0, e.reject("start", domain.ErrGridNotInitialized, "actor", actor.Hex())
	}
	epoch := e.grid.Epoch()
	id := e.board.Start(actor, epoch, e.now())
	e.mu.Unlock()

	GamesStarted.Inc()
	e.log.Info("game started", "actor", actor.Hex(), "game_id", id, "epoch", epoch)
	e.publish(ctx, e.event(domain.EventGameStarted, actor, id, nil, map[string]interface{}{"epoch": epoch}))
	return id, nil
}

// RequestReveal opens a disclosure for one cell. An expired request of the
// actor is cancelled first so its cell is eligible again; if the new request
// is then rejected the expired one is put back and nothing changes.
func (e *Engine) RequestReveal(ctx context.Context, actor domain.Actor, gameID uint64, cell int) (domain.Handle, error) {
	var events []domain.Event

	e.mu.Lock()
	now := e.now()
	expired, hasExpired := e.tracker.Peek(actor)
	hasExpired = hasExpired && expired.Expired(e.pendingTTL, now)
	if hasExpired {
		ev, err := e.cancelLocked(actor, expired)
		if err != nil {
			e.mu.Unlock()
			return domain.Handle{}, fmt.Errorf("cancel expired reveal: %w", err)
		}
		events = append(events, ev)
	}

	handle, err := e.checkRequestLocked(actor, gameID, cell)
	if err == nil {
		err = e.tracker.Begin(actor, gameID, cell, handle, now)
	}
	if err == nil {
		if err = e.board.RequestReveal(gameID, cell, actor); err != nil {
			// unreachable after the checks above under the same lock
			_, _ = e.tracker.Clear(actor)
		}
	}
	if err != nil {
		if hasExpired {
			e.restoreLocked(actor, expired)
		}
		e.mu.Unlock()
		return domain.Handle{}, e.reject("request", err, "actor", actor.Hex(), "game_id", gameID, "cell", cell)
	}
	PendingDisclosures.Set(float64(e.tracker.Len()))
	e.mu.Unlock()

	if hasExpired {
		RevealsCancelled.WithLabelValues("expired").Inc()
		e.log.Info("expired reveal replaced", "actor", actor.Hex(), "game_id", expired.GameID, "cell", expired.Cell)
	}
	if err := e.oracle.AllowPublicDecryption(ctx, handle); err != nil {
		e.log.Warn("allow public decryption failed", "error", err, "handle", handle.Hex(), "actor", actor.Hex())
	}

	RevealsRequested.Inc()
	e.log.Info("reveal requested", "actor", actor.Hex(), "game_id", gameID, "cell", cell, "handle", handle.Hex())
	events = append(events, e.event(domain.EventRevealRequested, actor, gameID, &cell, map[string]interface{}{"handle": handle.Hex()}))
	e.publish(ctx, events...)
	return handle, nil
}

// checkRequestLocked validates a reveal request and returns the cell handle.
// Must be called with e.mu held.
func (e *Engine) checkRequestLocked(actor domain.Actor, gameID uint64, cell int) (domain.Handle, error) {
	epoch, err := e.board.CheckReveal(gameID, cell, actor)
	if err != nil {
		return domain.Handle{}, err
	}
	handle, err := e.grid.HandleFor(cell)
	if err != nil {
		return domain.Handle{}, err
	}
	if epoch != e.grid.Epoch() {
		return domain.Handle{}, domain.ErrStaleGame
	}
	return handle, nil
}

// restoreLocked undoes cancelLocked for p. Must be called with e.mu held.
func (e *Engine) restoreLocked(actor domain.Actor, p tracker.Pending) {
	if err := e.board.RequestReveal(p.GameID, p.Cell, actor); err != nil && !errors.Is(err, domain.ErrGameNotActive) {
		e.log.Error("restore expired reveal", "error", err, "actor", actor.Hex(), "game_id", p.GameID, "cell", p.Cell)
	}
	if err := e.tracker.Begin(actor, p.GameID, p.Cell, p.Handle, p.RequestedAt); err != nil {
		e.log.Error("restore expired reveal", "error", err, "actor", actor.Hex(), "game_id", p.GameID, "cell", p.Cell)
	}
}

// CompleteReveal applies an attested disclosure for the actor's pending
// request. Nothing changes unless the proof verifies.
func (e *Engine) CompleteReveal(ctx context.Context, actor domain.Actor, cleartext bool, proof []byte) (domain.Outcome, error) {
	e.mu.Lock()
	p, ok := e.tracker.Peek(actor)
	if !ok {
		e.mu.Unlock()
		return domain.Outcome{}, e.reject("complete", domain.ErrNoPending, "actor", actor.Hex())
	}
	if !e.verifier.Verify(p.Handle, cleartext, proof) {
		e.mu.Unlock()
		return domain.Outcome{}, e.reject("complete", domain.ErrInvalidProof, "actor", actor.Hex(), "game_id", p.GameID, "cell", p.Cell)
	}

	now := e.now()
	out, err := e.board.ApplyDisclosure(p.GameID, p.Cell, cleartext, now)
	if err != nil {
		e.mu.Unlock()
		return domain.Outcome{}, fmt.Errorf("apply disclosure: %w", err)
	}
	_, _ = e.tracker.Clear(actor)
	var entry domain.RankingEntry
	if out.State == domain.GameWon {
		entry = e.ledger.Append(actor, out.Elapsed, now.UTC())
	}
	PendingDisclosures.Set(float64(e.tracker.Len()))
	e.mu.Unlock()

	DisclosureLatency.Observe(now.Sub(p.RequestedAt).Seconds())
	RevealsCompleted.WithLabelValues(cellOutcome(cleartext)).Inc()
	e.log.Info("cell revealed", "actor", actor.Hex(), "game_id", out.GameID, "cell", out.Cell, "mine", out.IsMine, "state", out.State.String())

	cell := out.Cell
	events := []domain.Event{
		e.event(domain.EventCellRevealed, actor, out.GameID, &cell, map[string]interface{}{"is_mine": out.IsMine}),
	}
	switch out.State {
	case domain.GameWon:
		events = append(events, e.event(domain.EventGameWon, actor, out.GameID, nil, map[string]interface{}{
			"seq":          entry.Seq,
			"elapsed_ms":   entry.Elapsed.Milliseconds(),
			"elapsed_ns":   entry.Elapsed.Nanoseconds(),
			"completed_at": entry.CompletedAt.Format(time.RFC3339Nano),
		}))
	case domain.GameLost:
		events = append(events, e.event(domain.EventGameLost, actor, out.GameID, &cell, nil))
	}
	e.publish(ctx, events...)
	return out, nil
}

// CancelReveal abandons the actor's pending request; the cell becomes
// hidden again.
func (e *Engine) CancelReveal(ctx context.Context, actor domain.Actor) error {
	e.mu.Lock()
	p, ok := e.tracker.Peek(actor)
	if !ok {
		e.mu.Unlock()
		return e.reject("cancel", domain.ErrNoPending, "actor", actor.Hex())
	}
	ev, err := e.cancelLocked(actor, p)
	PendingDisclosures.Set(float64(e.tracker.Len()))
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cancel reveal: %w", err)
	}

	RevealsCancelled.WithLabelValues("caller").Inc()
	e.log.Info("reveal cancelled", "actor", actor.Hex(), "game_id", p.GameID, "cell", p.Cell)
	e.publish(ctx, ev)
	return nil
}

// cancelLocked must be called with e.mu held.
func (e *Engine) cancelLocked(actor domain.Actor, p tracker.Pending) (domain.Event, error) {
	if err := e.board.CancelPending(p.GameID, p.Cell); err != nil && !errors.Is(err, domain.ErrGameNotActive) {
		return domain.Event{}, err
	}
	if _, err := e.tracker.Clear(actor); err != nil {
		return domain.Event{}, err
	}
	cell := p.Cell
	return e.event(domain.EventRevealCancelled, actor, p.GameID, &cell, nil), nil
}

func (e *Engine) CellState(gameID uint64, cell int) (domain.CellState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Cell(gameID, cell)
}

// Board returns the ordered cell states of a game.
func (e *Engine) Board(gameID uint64) ([]domain.CellState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Snapshot(gameID)
}

func (e *Engine) GameSummary(gameID uint64) (domain.GameSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Summary(gameID)
}

// Games lists every game of actor, newest first.
func (e *Engine) Games(actor domain.Actor) []domain.GameSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Games(actor)
}

func (e *Engine) PendingFor(actor domain.Actor) (tracker.Pending, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracker.Peek(actor)
}

func (e *Engine) ActiveGame(actor domain.Actor) (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.ActiveFor(actor)
}

// Rankings returns the first k winning runs in completion order.
func (e *Engine) Rankings(k int) []domain.RankingEntry {
	return e.ledger.Top(k)
}

// BestRankings returns the k fastest winning runs.
func (e *Engine) BestRankings(k int) []domain.RankingEntry {
	return e.ledger.Best(k)
}

func (e *Engine) RankingCount() int {
	return e.ledger.Len()
}

func (e *Engine) GridStatus() GridStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return GridStatus{
		Initialized: e.grid.Initialized(),
		Epoch:       e.grid.Epoch(),
		TotalCells:  domain.TotalCells,
		MineCount:   domain.MineCount,
	}
}

func (e *Engine) reject(op string, err error, args ...any) error {
	code := domain.Code(err)
	Rejected.WithLabelValues(op, code).Inc()
	e.log.Debug("operation rejected", append([]any{"op", op, "code", code, "error", err}, args...)...)
	return err
}

func (e *Engine) event(t domain.EventType, actor domain.Actor, gameID uint64, cell *int, details map[string]interface{}) domain.Event {
	return domain.Event{
		ID:        uuid.New().String(),
		Type:      t,
		Actor:     actor,
		GameID:    gameID,
		Cell:      cell,
		Details:   details,
		CreatedAt: e.now(),
	}
}

func (e *Engine) publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		for _, p := range e.publishers {
			p.Publish(ctx, ev)
		}
	}
}

func cellOutcome(isMine bool) string {
	if isMine {
		return "mine"
	}
	return "safe"
}
