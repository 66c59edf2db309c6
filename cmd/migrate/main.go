package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/neoncad/engine/pkg/config"
	"github.com/neoncad/engine/pkg/database"
	"github.com/neoncad/engine/pkg/logger"
)

const usage = "usage: migrate [up|down|reset|status]"

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{Logger: log})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	m, err := database.NewMigrator(db, cfg.DatabaseDriver)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}

	switch cmd {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			log.Fatal("migration failed", zap.Int("applied", n), zap.Error(err))
		}
		fmt.Fprintf(os.Stdout, "applied %d migration(s)\n", n)
	case "down":
		if err := m.Down(ctx); err != nil {
			log.Fatal("rollback failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, "rolled back one migration")
	case "reset":
		if err := m.Reset(ctx); err != nil {
			log.Fatal("reset failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, "rolled back all migrations")
	case "status":
		states, err := m.Status(ctx)
		if err != nil {
			log.Fatal("status failed", zap.Error(err))
		}
		for _, s := range states {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(os.Stdout, "%5d  %-8s %s\n", s.Version, state, s.Path)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
