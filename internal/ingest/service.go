package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"betterreads/internal/catalog"
	"betterreads/internal/dump"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Option func(*Service)

// WithRunRepository records every pass through repo.
func WithRunRepository(repo Repository) Option {
	return func(s *Service) {
		s.runRepo = repo
	}
}

// WithReporter replaces the default logging reporter.
func WithReporter(r Reporter) Option {
	return func(s *Service) {
		s.reporter = r
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

type Service struct {
	catalogRepo catalog.Repository
	runRepo     Repository
	reporter    Reporter
	log         zerolog.Logger
	limiter     *rate.Limiter
	cfg         Config
}

func NewService(catalogRepo catalog.Repository, cfg Config, opts ...Option) *Service {
	s := &Service{
		catalogRepo: catalogRepo,
		log:         zerolog.Nop(),
		cfg:         cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.reporter == nil {
		s.reporter = NewLogReporter(s.log)
	}
	if cfg.WriteRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.WriteRate), 1)
	}
	return s
}

// RunAuthors loads every author line of the dump at path.
func (s *Service) RunAuthors(ctx context.Context, path string) (*Run, error) {
	return s.run(ctx, KindAuthors, path, s.ingestAuthor)
}

// RunWorks loads every work line of the dump at path. Author names resolve
// against whatever authors the store holds when each line is handled.
func (s *Service) RunWorks(ctx context.Context, path string) (*Run, error) {
	return s.run(ctx, KindWorks, path, s.ingestWork)
}

// lineHandler turns one line into a result. A non-nil error ends the pass.
type lineHandler func(ctx context.Context, line dump.Line) (LineResult, error)

func (s *Service) run(ctx context.Context, kind Kind, path string, handle lineHandler) (run *Run, err error) {
	run = &Run{
		ID:          uuid.NewString(),
		Kind:        kind,
		Path:        path,
		Status:      StatusRunning,
		ConfigLimit: s.cfg.Limit,
		StartedAt:   time.Now(),
	}
	if s.runRepo != nil {
		if rErr := s.runRepo.CreateRun(ctx, run); rErr != nil {
			return run, fmt.Errorf("record run: %w", rErr)
		}
	}

	logger := s.log.With().Str("run_id", run.ID).Str("pass", string(kind)).Logger()
	logger.Info().Str("path", path).Int("limit", s.cfg.Limit).Msg("pass started")

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
		} else {
			run.Status = StatusCompleted
		}
		if s.runRepo != nil {
			// the pass may have ended because ctx was cancelled
			if updateErr := s.runRepo.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
				logger.Error().Err(updateErr).Msg("failed to update ingest run")
			}
		}
		evt := logger.Info()
		if err != nil {
			evt = logger.Error().Err(err)
		}
		evt.Str("status", run.Status).
			Int("lines_read", run.LinesRead).
			Int("saved", run.RecordsSaved).
			Int("skipped", run.LinesSkipped).
			Dur("duration", run.Duration()).
			Msg("pass finished")
	}()

	src, err := dump.Open(path, s.cfg.MaxLineBytes)
	if err != nil {
		return run, err
	}
	defer src.Close()

	for s.cfg.Limit <= 0 || run.LinesRead < s.cfg.Limit {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if !src.Next() {
			break
		}
		run.LinesRead++

		res, err := handle(ctx, src.Line())
		if err != nil {
			return run, err
		}
		if res.Outcome == Saved {
			run.RecordsSaved++
		} else {
			run.LinesSkipped++
		}
		s.reporter.Report(res)
	}
	return run, src.Err()
}

func (s *Service) ingestAuthor(ctx context.Context, line dump.Line) (LineResult, error) {
	res := LineResult{Kind: KindAuthors, Line: line.Number}

	author, err := parseAuthor(line)
	if err != nil {
		return skip(res, err), nil
	}
	res.ID, res.Label = author.ID, author.Name

	if err := s.throttle(ctx); err != nil {
		return res, err
	}
	if err := s.catalogRepo.SaveAuthor(ctx, author); err != nil {
		return skip(res, &StoreError{Line: line.Number, Op: "save author", ID: author.ID, Err: err}), nil
	}
	res.Outcome = Saved
	return res, nil
}

func (s *Service) ingestWork(ctx context.Context, line dump.Line) (LineResult, error) {
	res := LineResult{Kind: KindWorks, Line: line.Number}

	book, err := parseWork(line)
	if err != nil {
		return skip(res, err), nil
	}
	res.ID, res.Label = book.ID, book.Title

	if book.AuthorIDs != nil {
		names, err := s.resolveAuthorNames(ctx, line.Number, book.AuthorIDs)
		if err != nil {
			return skip(res, err), nil
		}
		book.AuthorNames = names
	}

	if err := s.throttle(ctx); err != nil {
		return res, err
	}
	if err := s.catalogRepo.SaveBook(ctx, book); err != nil {
		return skip(res, &StoreError{Line: line.Number, Op: "save book", ID: book.ID, Err: err}), nil
	}
	res.Outcome = Saved
	return res, nil
}

// resolveAuthorNames looks every id up on its own, in order. Ids the store
// does not know become catalog.UnknownAuthor.
func (s *Service) resolveAuthorNames(ctx context.Context, lineNo int, ids []string) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		author, err := s.catalogRepo.FindAuthorByID(ctx, id)
		switch {
		case err == nil:
			names = append(names, author.Name)
		case errors.Is(err, catalog.ErrNotFound):
			names = append(names, catalog.UnknownAuthor)
		default:
			return nil, &StoreError{Line: lineNo, Op: "find author", ID: id, Err: err}
		}
	}
	return names, nil
}

func (s *Service) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func skip(res LineResult, err error) LineResult {
	res.Outcome = Skipped
	res.Err = err
	return res
}
