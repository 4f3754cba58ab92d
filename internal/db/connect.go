package db

import (
	"context"
	"time"

	"hidden_mines/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) *pgxpool.Pool {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return db
}
