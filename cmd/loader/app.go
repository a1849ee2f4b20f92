package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"betterreads/internal/catalog"
	"betterreads/internal/config"
	"betterreads/internal/ingest"
	"betterreads/internal/platform/logger"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// failuresShown is how many skipped lines the summary lists per pass.
const failuresShown = 5

type loader struct {
	out io.Writer
	cfg *config.Config
	log zerolog.Logger
}

func newApp(out io.Writer) *cli.App {
	l := &loader{out: out}

	return &cli.App{
		Name:  "loader",
		Usage: "load Open Library author and work dumps into the catalog store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "store driver: postgres, sqlite, redis or memory"},
			&cli.StringFlag{Name: "dsn", Usage: "postgres connection string"},
			&cli.StringFlag{Name: "sqlite", Usage: "sqlite database `FILE`"},
			&cli.StringFlag{Name: "redis", Usage: "redis `ADDR`"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.Float64Flag{Name: "write-rate", Usage: "maximum saves per second (0 is unthrottled)"},
		},
		Before: l.configure,
		Commands: []*cli.Command{
			{
				Name:   "authors",
				Usage:  "load the author dump",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "author dump `PATH`"}, limitFlag()},
				Action: l.passAction(ingest.KindAuthors),
			},
			{
				Name:   "works",
				Usage:  "load the work dump, resolving author names from the store",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "work dump `PATH`"}, limitFlag()},
				Action: l.passAction(ingest.KindWorks),
			},
			{
				Name:  "all",
				Usage: "load the author dump, then the work dump",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "authors-file", Usage: "author dump `PATH`"},
					&cli.StringFlag{Name: "works-file", Usage: "work dump `PATH`"},
					limitFlag(),
				},
				Action: l.passAction(ingest.KindAuthors, ingest.KindWorks),
			},
			{
				Name:  "show",
				Usage: "print one saved record as JSON",
				Subcommands: []*cli.Command{
					{Name: "author", ArgsUsage: "ID", Action: l.showAction("author")},
					{Name: "book", ArgsUsage: "ID", Action: l.showAction("book")},
				},
			},
		},
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{Name: "limit", Usage: "read at most `N` lines per pass (0 reads the whole file)"}
}

// configure applies global flags on top of the environment configuration.
func (l *loader) configure(c *cli.Context) error {
	cfg := config.New()
	if c.IsSet("driver") {
		cfg.Driver = strings.ToLower(c.String("driver"))
	}
	if c.IsSet("dsn") {
		cfg.DSN = c.String("dsn")
	}
	if c.IsSet("sqlite") {
		cfg.SQLitePath = c.String("sqlite")
	}
	if c.IsSet("redis") {
		cfg.RedisAddr = c.String("redis")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("write-rate") {
		cfg.WriteRate = c.Float64("write-rate")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.cfg = cfg
	l.log = logger.New(cfg.Env, cfg.LogLevel)
	return nil
}

func (l *loader) passAction(kinds ...ingest.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.IsSet("limit") {
			if c.Int("limit") < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			l.cfg.Limit = c.Int("limit")
		}

		paths := make([]string, len(kinds))
		for i, kind := range kinds {
			path, err := l.dumpPath(c, kind)
			if err != nil {
				return err
			}
			paths[i] = path
		}

		store, runs, err := openStore(c.Context, l.cfg, l.log)
		if err != nil {
			return err
		}
		defer store.Close()

		for i, kind := range kinds {
			tally := ingest.NewTally(ingest.NewLogReporter(l.log), failuresShown)
			svc := ingest.NewService(store, ingest.Config{
				Limit:        l.cfg.Limit,
				WriteRate:    l.cfg.WriteRate,
				MaxLineBytes: l.cfg.MaxLineBytes,
			},
				ingest.WithRunRepository(runs),
				ingest.WithReporter(tally),
				ingest.WithLogger(l.log),
			)

			pass := svc.RunAuthors
			if kind == ingest.KindWorks {
				pass = svc.RunWorks
			}
			run, err := pass(c.Context, paths[i])
			printSummary(l.out, run, tally)
			if err != nil {
				return fmt.Errorf("%s pass: %w", kind, err)
			}
		}
		return nil
	}
}

// dumpPath prefers the command's file flag over the configured location.
func (l *loader) dumpPath(c *cli.Context, kind ingest.Kind) (string, error) {
	for _, name := range []string{"file", string(kind) + "-file"} {
		if v := c.String(name); v != "" {
			return v, nil
		}
	}
	if kind == ingest.KindAuthors && l.cfg.AuthorsPath != "" {
		return l.cfg.AuthorsPath, nil
	}
	if kind == ingest.KindWorks && l.cfg.WorksPath != "" {
		return l.cfg.WorksPath, nil
	}
	return "", fmt.Errorf("no %s dump given: pass a file flag or set DATADUMP_LOCATION_%s", kind, strings.ToUpper(string(kind)))
}

func (l *loader) showAction(kind string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("usage: loader show %s ID", kind)
		}
		id := c.Args().First()

		store, _, err := openStore(c.Context, l.cfg, l.log)
		if err != nil {
			return err
		}
		defer store.Close()

		var rec any
		if kind == "author" {
			rec, err = store.FindAuthorByID(c.Context, id)
		} else {
			rec, err = store.FindBookByID(c.Context, id)
		}
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%s %s not found", kind, id)
		}
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		_, err = fmt.Fprintln(l.out, string(b))
		return err
	}
}

func printSummary(w io.Writer, run *ingest.Run, tally *ingest.Tally) {
	if run == nil {
		return
	}
	fmt.Fprintf(w, "%s pass %s: %d lines read, %d saved, %d skipped in %s\n",
		run.Kind, run.Status, run.LinesRead, run.RecordsSaved, run.LinesSkipped, run.Duration().Round(time.Millisecond))
	for _, f := range tally.Failures {
		fmt.Fprintf(w, "  %v\n", f.Err)
	}
	if more := tally.Skipped - len(tally.Failures); more > 0 {
		fmt.Fprintf(w, "  ... and %d more skipped lines\n", more)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", run.Error)
	}
}
