package repository

import (
	"context"
	"time"

	"hidden_mines/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RankingRepository persists the ranking ledger. Rows are ordered by the
// ledger sequence number, not by arrival, and keep nanosecond precision.
type RankingRepository struct {
	db *pgxpool.Pool
}

func NewRankingRepository(db *pgxpool.Pool) *RankingRepository {
	return &RankingRepository{db: db}
}

// Append stores one winning run, keyed by the id of its game_won event.
func (r *RankingRepository) Append(ctx context.Context, eventID string, gameID uint64, e domain.RankingEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rankings (event_id, seq, game_id, actor, elapsed_ms, elapsed_ns, completed_at, completed_at_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, int64(e.Seq), int64(gameID), e.Actor.Hex(), e.Elapsed.Milliseconds(), e.Elapsed.Nanoseconds(),
		e.CompletedAt, e.CompletedAt.UnixNano())
	return err
}

// ListInOrder returns every entry in ledger order.
func (r *RankingRepository) ListInOrder(ctx context.Context) ([]domain.RankingEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT seq, actor, elapsed_ns, completed_at_ns
		FROM rankings
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RankingEntry
	for rows.Next() {
		var (
			seq, elapsed, at int64
			actor            string
		)
		if err := rows.Scan(&seq, &actor, &elapsed, &at); err != nil {
			return nil, err
		}
		out = append(out, domain.RankingEntry{
			Seq:         uint64(seq),
			Actor:       common.HexToAddress(actor),
			Elapsed:     time.Duration(elapsed),
			CompletedAt: time.Unix(0, at).UTC(),
		})
	}
	return out, rows.Err()
}
