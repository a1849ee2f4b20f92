package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) SaveAuthor(ctx context.Context, a Author) error {
	const sql = `
		INSERT INTO authors (id, name, personal_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			personal_name = EXCLUDED.personal_name`

	if _, err := r.db.Exec(ctx, sql, a.ID, a.Name, a.PersonalName); err != nil {
		return fmt.Errorf("save author: %w", err)
	}
	return nil
}

func (r *PostgresRepo) SaveBook(ctx context.Context, b Book) error {
	const sql = `
		INSERT INTO books (id, title, description, author_ids, author_names, cover_ids, publish_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			author_ids = EXCLUDED.author_ids,
			author_names = EXCLUDED.author_names,
			cover_ids = EXCLUDED.cover_ids,
			publish_date = EXCLUDED.publish_date`

	_, err := r.db.Exec(ctx, sql, b.ID, b.Title, b.Description, b.AuthorIDs, b.AuthorNames, b.CoverIDs, b.PublishDate)
	if err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

func (r *PostgresRepo) FindAuthorByID(ctx context.Context, id string) (Author, error) {
	const query = `SELECT id, name, personal_name FROM authors WHERE id = $1`

	var a Author
	err := r.db.QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &a.PersonalName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Author{}, ErrNotFound
		}
		return Author{}, fmt.Errorf("find author %s: %w", id, err)
	}
	return a, nil
}

func (r *PostgresRepo) FindBookByID(ctx context.Context, id string) (Book, error) {
	const query = `
		SELECT id, title, description, author_ids, author_names, cover_ids, publish_date
		FROM books
		WHERE id = $1`

	var b Book
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Description, &b.AuthorIDs, &b.AuthorNames, &b.CoverIDs, &b.PublishDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("find book %s: %w", id, err)
	}
	return b, nil
}

// Close releases the underlying pool.
func (r *PostgresRepo) Close() error {
	r.db.Close()
	return nil
}
