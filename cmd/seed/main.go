// Command seed loads company JSON files into the ledger so a fresh
// deployment has something to trade. Each file under the seed directory
// holds one company payload in the same shape the create-company endpoint
// accepts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/git-masi/memestock-backend/internal/exchange"
	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dir := flag.String("dir", "seed/companies", "directory of company JSON files")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		slog.Error("DATABASE_URL is required, the in-memory store cannot be seeded")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		slog.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	pg := store.NewPostgresStore(pool)
	if err := pg.Init(ctx); err != nil {
		slog.Error("database init failed", "err", err)
		os.Exit(1)
	}

	svc := exchange.NewService(ledger.New(pg), nil)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		slog.Error("read seed directory failed", "dir", *dir, "err", err)
		os.Exit(1)
	}

	var created, skipped int
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(*dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read seed file failed", "file", path, "err", err)
			os.Exit(1)
		}
		var req exchange.CreateCompanyRequest
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Error("decode seed file failed", "file", path, "err", err)
			os.Exit(1)
		}

		c, err := svc.CreateCompany(ctx, req)
		if errors.Is(err, exchange.ErrDuplicate) {
			slog.Info("company already listed", "symbol", req.Symbol)
			skipped++
			continue
		}
		if err != nil {
			slog.Error("create company failed", "file", path, "err", err)
			os.Exit(1)
		}
		slog.Info("company listed", "symbol", c.Symbol, "name", c.Name)
		created++
	}

	slog.Info("seed complete", "created", created, "skipped", skipped)
}
