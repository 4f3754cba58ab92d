package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"hidden_mines/internal/domain"
)

type memEvents struct {
	mu   sync.Mutex
	rows []domain.Event
	fail bool
}

func (m *memEvents) Create(_ context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.rows = append(m.rows, ev)
	return nil
}

type memRankings struct {
	mu   sync.Mutex
	rows []domain.RankingEntry
	ids  map[string]bool
}

func (m *memRankings) Append(_ context.Context, eventID string, _ uint64, e domain.RankingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids == nil {
		m.ids = make(map[string]bool)
	}
	if m.ids[eventID] {
		return nil
	}
	m.ids[eventID] = true
	m.rows = append(m.rows, e)
	return nil
}

func (m *memRankings) ListInOrder(context.Context) ([]domain.RankingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.RankingEntry(nil), m.rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func runLog(t *testing.T, l *EventLog, publish func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	publish()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("event log did not stop")
	}
}

func TestEventLogPersistsInOrder(t *testing.T) {
	events := &memEvents{}
	rankings := &memRankings{}
	l := NewEventLog(events, rankings, 128)

	f := newFixture(t, Options{})
	f.engine.Subscribe(l)

	runLog(t, l, func() {
		f.initGrid(t)
		id, err := f.engine.StartGame(context.Background(), alice)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for cell := 0; cell < domain.TotalCells; cell++ {
			if !isMine(cell) {
				f.clock.Advance(time.Second)
				f.reveal(t, alice, id, cell)
			}
		}
	})

	want := f.events.types()
	if len(events.rows) != len(want) {
		t.Fatalf("expected %d persisted events, got %d", len(want), len(events.rows))
	}
	for i, ev := range events.rows {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}

	if len(rankings.rows) != 1 {
		t.Fatalf("expected one ranking row, got %d", len(rankings.rows))
	}
	stored := rankings.rows[0]
	live := f.engine.Rankings(1)[0]
	if stored != live {
		t.Fatalf("stored ranking %+v differs from ledger %+v", stored, live)
	}

	restored, err := LoadLedger(context.Background(), rankings)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if restored.Len() != 1 || restored.Top(1)[0] != live || live.Elapsed != 20*time.Second {
		t.Fatalf("unexpected restored ledger %+v", restored.Top(1))
	}
}

func wonEvent(id string, seq uint64, elapsed time.Duration, at time.Time) domain.Event {
	return domain.Event{
		ID:   id,
		Type: domain.EventGameWon,
		Details: map[string]interface{}{
			"seq":          seq,
			"elapsed_ms":   elapsed.Milliseconds(),
			"elapsed_ns":   elapsed.Nanoseconds(),
			"completed_at": at.Format(time.RFC3339Nano),
		},
	}
}

func TestLoadLedgerFollowsSeqNotArrival(t *testing.T) {
	rankings := &memRankings{}
	l := NewEventLog(&memEvents{}, rankings, 8)
	at := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)

	runLog(t, l, func() {
		l.Publish(context.Background(), wonEvent("b", 2, 1500*time.Microsecond+7, at.Add(time.Nanosecond)))
		l.Publish(context.Background(), wonEvent("a", 1, 3*time.Second+1, at))
	})

	ledger, err := LoadLedger(context.Background(), rankings)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	top := ledger.Top(2)
	if len(top) != 2 || top[0].Seq != 1 || top[1].Seq != 2 {
		t.Fatalf("expected seq order, got %+v", top)
	}
	if top[0].Elapsed != 3*time.Second+1 || !top[1].CompletedAt.Equal(at.Add(time.Nanosecond)) {
		t.Fatalf("restored entries lost precision: %+v", top)
	}
	if next := ledger.Append(alice, time.Second, at); next.Seq != 3 {
		t.Fatalf("expected appends to continue at seq 3, got %d", next.Seq)
	}
}

func TestWinIsNotDroppedWhenQueueFull(t *testing.T) {
	events := &memEvents{}
	rankings := &memRankings{}
	l := NewEventLog(events, rankings, 1)
	ctx := context.Background()

	l.Publish(ctx, domain.Event{ID: "started", Type: domain.EventGameStarted})
	l.Publish(ctx, domain.Event{ID: "dropped", Type: domain.EventCellRevealed})

	published := make(chan struct{})
	go func() {
		l.Publish(ctx, wonEvent("won", 1, time.Second, time.Now().UTC()))
		close(published)
	}()

	runLog(t, l, func() {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatalf("game_won publish did not complete")
		}
	})

	if len(events.rows) != 2 || events.rows[0].ID != "started" || events.rows[1].ID != "won" {
		t.Fatalf("unexpected persisted events %+v", events.rows)
	}
	if len(rankings.rows) != 1 {
		t.Fatalf("expected the win to be ranked, got %d rows", len(rankings.rows))
	}
}

func TestEventLogSurvivesStoreErrors(t *testing.T) {
	events := &memEvents{fail: true}
	l := NewEventLog(events, nil, 4)

	runLog(t, l, func() {
		l.Publish(context.Background(), domain.Event{ID: "a", Type: domain.EventGameStarted})
		l.Publish(context.Background(), domain.Event{ID: "b", Type: domain.EventGameWon})
	})
	if len(events.rows) != 0 {
		t.Fatalf("failed writes must not be recorded")
	}
}

func TestRankingFromEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	ev := domain.Event{
		Type: domain.EventGameWon,
		Details: map[string]interface{}{
			"seq":          float64(4),
			"elapsed_ns":   float64(1500000001),
			"completed_at": at.Format(time.RFC3339Nano),
		},
	}
	e, ok := rankingFromEvent(ev)
	if !ok || e.Seq != 4 || e.Elapsed != 1500*time.Millisecond+1 || !e.CompletedAt.Equal(at) {
		t.Fatalf("unexpected entry %+v %v", e, ok)
	}

	bad := []map[string]interface{}{
		{"seq": float64(1), "elapsed_ns": "x", "completed_at": at.Format(time.RFC3339Nano)},
		{"elapsed_ns": float64(1), "completed_at": at.Format(time.RFC3339Nano)},
		{"seq": float64(0), "elapsed_ns": float64(1), "completed_at": at.Format(time.RFC3339Nano)},
	}
	for _, d := range bad {
		if _, ok := rankingFromEvent(domain.Event{Details: d}); ok {
			t.Fatalf("expected malformed details %v to be rejected", d)
		}
	}
}
