package ingest

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores pass bookkeeping.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateRun(ctx context.Context, run *Run) error {
	const sql = `
		INSERT INTO ingest_runs (id, kind, path, config_limit, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, sql, run.ID, string(run.Kind), run.Path, run.ConfigLimit, run.Status, run.StartedAt)
	return err
}

func (r *PostgresRepo) UpdateRun(ctx context.Context, run *Run) error {
	const sql = `
		UPDATE ingest_runs SET
			finished_at = $1,
			status = $2,
			lines_read = $3,
			records_saved = $4,
			lines_skipped = $5,
			error = $6
		WHERE id = $7`

	_, err := r.db.Exec(ctx, sql, run.FinishedAt, run.Status, run.LinesRead, run.RecordsSaved, run.LinesSkipped, run.Error, run.ID)
	return err
}
