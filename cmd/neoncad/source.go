package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"github.com/neoncad/engine/internal/repository"
	"github.com/neoncad/engine/internal/services"
	"github.com/neoncad/engine/internal/storage"
	"github.com/neoncad/engine/internal/syncer"
	"github.com/neoncad/engine/pkg/database"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// sourceFlags select where a project is read from or written to: a
// snapshot file, a project in the database, or a project on an API server.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "file", Usage: "snapshot file"},
		&cli.StringFlag{Name: "project", Usage: "project id"},
		&cli.StringFlag{Name: "server", Usage: "API base URL, e.g. http://localhost:8080"},
	}
}

func openDB(ctx context.Context, c *cli.Command) (*gorm.DB, func(), error) {
	driver := c.String("db-driver")
	db, err := database.Open(ctx, driver, c.String("db"), database.Options{Logger: logger.L()})
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := database.Migrate(ctx, db, driver); err != nil {
		closeDB()
		return nil, nil, err
	}
	return db, closeDB, nil
}

func projectService(db *gorm.DB) services.ProjectService {
	return services.NewProjectService(repository.NewProjectRepository(db), repository.NewSnapshotRepository(db), nil)
}

func projectID(c *cli.Command) (uuid.UUID, error) {
	s := c.String("project")
	if s == "" {
		return uuid.Nil, appErr.New(appErr.CodeInvalid, "one of --file or --project is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, appErr.Newf(appErr.CodeInvalid, "invalid project id %q", s)
	}
	return id, nil
}

// openSource resolves the source flags to a persistence. The returned
// function releases whatever was opened.
func openSource(ctx context.Context, c *cli.Command) (syncer.Persistence, func(), error) {
	if path := c.String("file"); path != "" {
		return storage.NewFileStore(path), func() {}, nil
	}
	id, err := projectID(c)
	if err != nil {
		return nil, nil, err
	}
	if server := c.String("server"); server != "" {
		return storage.NewHTTPStore(server, id, nil), func() {}, nil
	}
	db, closeDB, err := openDB(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewServiceStore(projectService(db), id), closeDB, nil
}

func describe(c *cli.Command) string {
	if path := c.String("file"); path != "" {
		return path
	}
	if server := c.String("server"); server != "" {
		return fmt.Sprintf("%s (%s)", c.String("project"), server)
	}
	return c.String("project")
}
