package repository

import (
	"context"
	"encoding/json"

	"hidden_mines/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository is the append-only protocol event log.
type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts an event. Re-inserting the same event id is a no-op.
func (r *EventRepository) Create(ctx context.Context, ev domain.Event) error {
	detailsJSON, err := json.Marshal(ev.Details)
	if err != nil || ev.Details == nil {
		detailsJSON = []byte("{}")
	}

	var cell *int32
	if ev.Cell != nil {
		c := int32(*ev.Cell)
		cell = &c
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO protocol_events (event_id, type, actor, game_id, cell, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID, string(ev.Type), ev.Actor.Hex(), int64(ev.GameID), cell, detailsJSON, ev.CreatedAt)
	return err
}

// ListByGame returns the events of one game in the order they happened.
func (r *EventRepository) ListByGame(ctx context.Context, gameID uint64, limit int) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, type, actor, game_id, cell, details, created_at
		FROM protocol_events
		WHERE game_id = $1
		ORDER BY id ASC
		LIMIT $2
	`, int64(gameID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the latest events, newest first.
func (r *EventRepository) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, type, actor, game_id, cell, details, created_at
		FROM protocol_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var (
			ev          domain.Event
			typ, actor  string
			gameID      int64
			cell        *int32
			detailsJSON []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &actor, &gameID, &cell, &detailsJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(typ)
		ev.Actor = common.HexToAddress(actor)
		ev.GameID = uint64(gameID)
		if cell != nil {
			c := int(*cell)
			ev.Cell = &c
		}
		if err := json.Unmarshal(detailsJSON, &ev.Details); err != nil {
			ev.Details = make(map[string]interface{})
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
