package service

import (
	"context"
	"log/slog"
	"time"

	"hidden_mines/internal/domain"
	"hidden_mines/internal/logger"
	"hidden_mines/internal/ranking"
)

// EventStore persists protocol events.
type EventStore interface {
	Create(ctx context.Context, ev domain.Event) error
}

// RankingStore persists winning runs. ListInOrder returns them by Seq.
type RankingStore interface {
	Append(ctx context.Context, eventID string, gameID uint64, e domain.RankingEntry) error
	ListInOrder(ctx context.Context) ([]domain.RankingEntry, error)
}

const writeTimeout = 5 * time.Second

// EventLog is a Publisher that writes events to storage from a single
// worker, so rows land in publish order.
type EventLog struct {
	events   EventStore
	rankings RankingStore
	queue    chan domain.Event
	done     chan struct{}
	log      *slog.Logger
}

func NewEventLog(events EventStore, rankings RankingStore, buffer int) *EventLog {
	if buffer <= 0 {
		buffer = 1024
	}
	return &EventLog{
		events:   events,
		rankings: rankings,
		queue:    make(chan domain.Event, buffer),
		done:     make(chan struct{}),
		log:      logger.With("component", "event_log"),
	}
}

// Publish enqueues ev. When the queue is full other events are dropped and
// counted rather than stalling the engine; game_won waits for room because
// the ranking ledger is rebuilt from it.
func (l *EventLog) Publish(ctx context.Context, ev domain.Event) {
	select {
	case l.queue <- ev:
		return
	default:
	}

	if ev.Type == domain.EventGameWon {
		select {
		case l.queue <- ev:
			return
		case <-l.done:
		}
	}
	EventsPersisted.WithLabelValues("dropped").Inc()
	logger.WithContext(ctx).Error("event log queue full, dropping event", "event_id", ev.ID, "type", ev.Type)
}

// Run writes queued events until ctx is done, then drains what is left.
// It must be called once.
func (l *EventLog) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case ev := <-l.queue:
			l.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-l.queue:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *EventLog) write(ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := l.events.Create(ctx, ev); err != nil {
		EventsPersisted.WithLabelValues("error").Inc()
		l.log.Error("failed to persist event", "error", err, "event_id", ev.ID, "type", ev.Type)
	} else {
		EventsPersisted.WithLabelValues("ok").Inc()
	}

	if ev.Type != domain.EventGameWon || l.rankings == nil {
		return
	}
	entry, ok := rankingFromEvent(ev)
	if !ok {
		l.log.Error("game_won event without ranking details", "event_id", ev.ID, "game_id", ev.GameID)
		return
	}
	if err := l.rankings.Append(ctx, ev.ID, ev.GameID, entry); err != nil {
		l.log.Error("failed to persist ranking", "error", err, "game_id", ev.GameID, "seq", entry.Seq, "actor", ev.Actor.Hex())
	}
}

func rankingFromEvent(ev domain.Event) (domain.RankingEntry, bool) {
	entry := domain.RankingEntry{Actor: ev.Actor}

	seq, ok := detailInt(ev.Details["seq"])
	if !ok || seq <= 0 {
		return entry, false
	}
	entry.Seq = uint64(seq)

	ns, ok := detailInt(ev.Details["elapsed_ns"])
	if !ok {
		return entry, false
	}
	entry.Elapsed = time.Duration(ns)

	raw, ok := ev.Details["completed_at"].(string)
	if !ok {
		return entry, false
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return entry, false
	}
	entry.CompletedAt = at
	return entry, true
}

// detailInt reads an integer detail set in process or decoded from JSON.
func detailInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// LoadLedger rebuilds the ranking ledger from storage in insertion order.
func LoadLedger(ctx context.Context, store RankingStore) (*ranking.Ledger, error) {
	entries, err := store.ListInOrder(ctx)
	if err != nil {
		return nil, err
	}
	l := ranking.NewLedger()
	for _, e := range entries {
		l.Restore(e)
	}
	return l, nil
}
