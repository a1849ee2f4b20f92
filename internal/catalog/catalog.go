package catalog

import (
	"context"
	"errors"
	"time"
)

// UnknownAuthor is stored in place of a name when a referenced author is not in the store.
const UnknownAuthor = "Unknown author"

var ErrNotFound = errors.New("record not found")

type Author struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PersonalName string `json:"personal_name"`
}

type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AuthorIDs   []string   `json:"author_ids"`
	AuthorNames []string   `json:"author_names"`
	CoverIDs    []string   `json:"cover_ids"`
	PublishDate *time.Time `json:"publish_date"`
}

// Repository is the record store the ingest passes write to.
// FindAuthorByID returns ErrNotFound when no author with id was saved.
type Repository interface {
	SaveAuthor(ctx context.Context, author Author) error
	SaveBook(ctx context.Context, book Book) error
	FindAuthorByID(ctx context.Context, id string) (Author, error)
}

// Store is a Repository that can also read books back, used by the loader's show command.
type Store interface {
	Repository
	FindBookByID(ctx context.Context, id string) (Book, error)
	Close() error
}
