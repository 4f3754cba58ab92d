package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hidden_mines/internal/db"
	"hidden_mines/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apply := flag.Bool("apply", false, "apply migrations")
	migDir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	files, err := os.ReadDir(*migDir)
	if err != nil {
		logger.Fatal("read migrations dir", "error", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	if !*apply {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	ctx := context.Background()
	pool := db.Connect(ctx, dsn)
	defer pool.Close()

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(*migDir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("apply migration", "file", name, "error", err)
		}
		logger.Info("applied migration", "file", name)
	}
}
