package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/bom"
	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/editor"
	"github.com/neoncad/engine/internal/measure"
	"github.com/neoncad/engine/internal/services"
	"github.com/neoncad/engine/internal/storage"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// loadEditor opens the source selected by the flags and loads it into a
// headless editor.
func loadEditor(ctx context.Context, c *cli.Command) (*editor.Editor, func(), error) {
	src, release, err := openSource(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	ed := editor.New(editor.Options{
		Remote:       src,
		DecimalComma: c.Bool("comma"),
		Logger:       logger.L(),
	})
	origin, err := ed.Load(ctx)
	if err != nil {
		ed.Close()
		release()
		return nil, nil, err
	}
	logger.L().Info("project loaded", zap.String("source", describe(c)), zap.Stringer("origin", origin))
	return ed, func() {
		ed.Close()
		release()
	}, nil
}

func applyView(ed *editor.Editor, c *cli.Command) error {
	switch {
	case c.Bool("all"):
		ed.ShowAllGroups()
	case c.Int("group") > 0:
		return ed.SetActiveGroup(int(c.Int("group")))
	}
	return nil
}

func output(c *cli.Command) (io.Writer, func() error, error) {
	path := c.String("out")
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func bomCommand() *cli.Command {
	return &cli.Command{
		Name:  "bom",
		Usage: "Print the bill of materials of a project",
		Flags: append(sourceFlags(),
			&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv, html or json"},
			&cli.StringFlag{Name: "out", Usage: "output file (default stdout)"},
			&cli.IntFlag{Name: "group", Usage: "report a single group"},
			&cli.BoolFlag{Name: "all", Usage: "report every group"},
			&cli.BoolFlag{Name: "comma", Usage: "decimal comma in numbers"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ed, release, err := loadEditor(ctx, c)
			if err != nil {
				return err
			}
			defer release()
			if err := applyView(ed, c); err != nil {
				return err
			}
			rep := ed.BOM()

			w, closeOut, err := output(c)
			if err != nil {
				return err
			}
			switch c.String("format") {
			case "csv":
				err = bom.WriteCSV(w, rep)
			case "html":
				err = bom.RenderHTML(w, rep)
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				err = enc.Encode(struct {
					bom.Report
					Rows []bom.Row `json:"rows"`
				}{rep, rep.Rows()})
			default:
				err = appErr.Newf(appErr.CodeInvalid, "unknown format %q", c.String("format"))
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			return err
		},
	}
}

func measureCommand() *cli.Command {
	return &cli.Command{
		Name:  "measure",
		Usage: "List the lengths of visible lines",
		Flags: append(sourceFlags(),
			&cli.IntFlag{Name: "group", Usage: "measure a single group"},
			&cli.BoolFlag{Name: "all", Usage: "measure every group"},
			&cli.BoolFlag{Name: "comma", Usage: "decimal comma in numbers"},
			&cli.BoolFlag{Name: "segments", Usage: "print every segment"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ed, release, err := loadEditor(ctx, c)
			if err != nil {
				return err
			}
			defer release()
			if err := applyView(ed, c); err != nil {
				return err
			}
			ed.FlushMeasurements()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tGROUP\tLENGTH")
			var total float64
			for _, e := range ed.VisibleEntities() {
				if e.Kind != canvas.KindLine {
					continue
				}
				v, ok := ed.Measurements(e.ID)
				if !ok {
					continue
				}
				total += v.Measurement.Total
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.DisplayName(), e.GroupID, v.Total.Text)
				if c.Bool("segments") {
					for i, s := range v.Segments {
						fmt.Fprintf(tw, "\t  #%d\t\t%s\n", i+1, s.Text)
					}
				}
			}
			fmt.Fprintf(tw, "\t\t\t%s\n", measure.TotalText("", total, c.Bool("comma")))
			return tw.Flush()
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Save a snapshot file as the next version of a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Required: true, Usage: "snapshot file"},
			&cli.StringFlag{Name: "project", Required: true, Usage: "project id"},
			&cli.StringFlag{Name: "server", Usage: "API base URL"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			snap, err := storage.NewFileStore(c.String("in")).Load(ctx)
			if err != nil {
				return err
			}
			if snap == nil {
				return appErr.Newf(appErr.CodeNotFound, "%s does not exist", c.String("in"))
			}
			if snap.Skipped > 0 {
				logger.L().Warn("legacy objects skipped", zap.Int("skipped", snap.Skipped))
			}

			target, release, err := openSource(ctx, c)
			if err != nil {
				return err
			}
			defer release()

			ed := editor.New(editor.Options{Remote: target, Logger: logger.L()})
			defer ed.Close()
			if err := ed.Restore(*snap); err != nil {
				return err
			}
			if err := ed.Flush(ctx); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "imported %d entities into %s\n", ed.Store().Len(), describe(c))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the current snapshot of a project to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Required: true, Usage: "project id"},
			&cli.StringFlag{Name: "server", Usage: "API base URL"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "snapshot file"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ed, release, err := loadEditor(ctx, c)
			if err != nil {
				return err
			}
			defer release()
			snap := ed.Capture()
			if err := storage.NewFileStore(c.String("out")).Save(ctx, snap); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "exported %d entities to %s\n", len(snap.Entities), c.String("out"))
			return nil
		},
	}
}

func versionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "versions",
		Usage: "List the stored versions of a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Required: true, Usage: "project id"},
			&cli.IntFlag{Name: "restore", Usage: "make this version current"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := projectID(c)
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(ctx, c)
			if err != nil {
				return err
			}
			defer closeDB()
			svc := projectService(db)

			if v := c.Int("restore"); v > 0 {
				if _, err := svc.RestoreVersion(ctx, id, int(v)); err != nil {
					return err
				}
			}
			rows, err := svc.ListVersions(ctx, id)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tCURRENT\tCHECKSUM\tCREATED")
			for _, r := range rows {
				current := ""
				if r.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%.12s\t%s\n", r.Version, current, r.Checksum, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Manage projects in the database",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List projects",
				Action: func(ctx context.Context, c *cli.Command) error {
					db, closeDB, err := openDB(ctx, c)
					if err != nil {
						return err
					}
					defer closeDB()
					items, _, err := projectService(db).ListProjects(ctx, 1, 100)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
					for _, p := range items {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "create",
				Usage: "Create an empty project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					db, closeDB, err := openDB(ctx, c)
					if err != nil {
						return err
					}
					defer closeDB()
					p, err := projectService(db).CreateProject(ctx, &services.CreateProjectInput{
						Name:        c.String("name"),
						Description: c.String("description"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(os.Stdout, p.ID)
					return nil
				},
			},
		},
	}
}
