package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"hidden_mines/internal/domain"
	"hidden_mines/internal/repository"
	"hidden_mines/internal/service"
)

func applyMigrationsToPool(t *testing.T, dbp *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := dbp.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	dbp, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(dbp.Close)
	applyMigrationsToPool(t, dbp)
	return dbp
}

func TestEventRepository(t *testing.T) {
	dbp := connect(t)
	repo := repository.NewEventRepository(dbp)
	ctx := context.Background()

	// game ids far above anything a test run creates
	gameID := uint64(time.Now().UnixNano())
	actor := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	cell := 4
	evs := []domain.Event{
		{ID: uuid.NewString(), Type: domain.EventGameStarted, Actor: actor, GameID: gameID, CreatedAt: time.Now()},
		{ID: uuid.NewString(), Type: domain.EventCellRevealed, Actor: actor, GameID: gameID, Cell: &cell,
			Details: map[string]interface{}{"is_mine": false}, CreatedAt: time.Now()},
	}
	for _, ev := range evs {
		if err := repo.Create(ctx, ev); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// duplicate ids are ignored
	if err := repo.Create(ctx, evs[0]); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}

	got, err := repo.ListByGame(ctx, gameID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[1].Type != domain.EventCellRevealed || got[1].Cell == nil || *got[1].Cell != 4 || got[1].Actor != actor {
		t.Fatalf("unexpected event %+v", got[1])
	}
	if got[1].Details["is_mine"] != false {
		t.Fatalf("details not round-tripped: %v", got[1].Details)
	}
}

func TestRankingRepositoryRestoresLedger(t *testing.T) {
	dbp := connect(t)
	repo := repository.NewRankingRepository(dbp)
	ctx := context.Background()

	before, err := repo.ListInOrder(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var last uint64
	for _, e := range before {
		last = max(last, e.Seq)
	}

	actor := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	at := time.Unix(0, time.Now().UnixNano()).UTC()
	eventID := uuid.NewString()
	entries := []domain.RankingEntry{
		{Seq: last + 1, Actor: actor, Elapsed: 42*time.Second + 123, CompletedAt: at},
		{Seq: last + 2, Actor: actor, Elapsed: 7*time.Second + 1, CompletedAt: at.Add(time.Nanosecond)},
	}
	// stored out of order, restored by seq
	if err := repo.Append(ctx, uuid.NewString(), 2, entries[1]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, eventID, 1, entries[0]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, eventID, 1, entries[0]); err != nil {
		t.Fatalf("idempotent append: %v", err)
	}

	ledger, err := service.LoadLedger(ctx, repo)
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if ledger.Len() != len(before)+2 {
		t.Fatalf("expected %d entries, got %d", len(before)+2, ledger.Len())
	}
	all := ledger.Top(ledger.Len())
	tail := all[len(all)-2:]
	for i, e := range tail {
		if e != entries[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, entries[i], e)
		}
	}
}
