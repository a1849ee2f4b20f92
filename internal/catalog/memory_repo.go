package catalog

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo is a map-backed store for tests and dry runs. Saves overwrite.
type MemoryRepo struct {
	mu      sync.RWMutex
	authors map[string]Author
	books   map[string]Book
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		authors: make(map[string]Author),
		books:   make(map[string]Book),
	}
}

func (r *MemoryRepo) SaveAuthor(_ context.Context, a Author) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[a.ID] = a
	return nil
}

func (r *MemoryRepo) SaveBook(_ context.Context, b Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.AuthorIDs = slices.Clone(b.AuthorIDs)
	b.AuthorNames = slices.Clone(b.AuthorNames)
	b.CoverIDs = slices.Clone(b.CoverIDs)
	r.books[b.ID] = b
	return nil
}

func (r *MemoryRepo) FindAuthorByID(_ context.Context, id string) (Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.authors[id]
	if !ok {
		return Author{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) FindBookByID(_ context.Context, id string) (Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

// Counts reports how many distinct authors and books are held.
func (r *MemoryRepo) Counts() (authors, books int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.authors), len(r.books)
}

func (r *MemoryRepo) Close() error {
	return nil
}
