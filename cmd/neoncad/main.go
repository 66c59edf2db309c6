package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/neoncad/engine/pkg/logger"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "neoncad",
		Usage: "Operate on NeonCAD projects without the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: "console", Sources: cli.EnvVars("LOG_FORMAT")},
			&cli.StringFlag{Name: "db-driver", Value: "sqlite", Usage: "postgres or sqlite", Sources: cli.EnvVars("DATABASE_DRIVER")},
			&cli.StringFlag{Name: "db", Value: "neoncad.db", Usage: "database DSN or SQLite path", Sources: cli.EnvVars("DATABASE_URL")},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// stdout carries reports
			if _, err := logger.InitWriter(c.String("log-level"), c.String("log-format"), os.Stderr); err != nil {
				return ctx, err
			}
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			projectsCommand(),
			bomCommand(),
			measureCommand(),
			importCommand(),
			exportCommand(),
			versionsCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
