package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisRepo keeps each record as a JSON string under <prefix>author:<id> or <prefix>book:<id>.
type RedisRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisRepo(addr, password string, db int, prefix string) *RedisRepo {
	return &RedisRepo{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		prefix: prefix,
	}
}

// Ping verifies the server is reachable.
func (r *RedisRepo) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisRepo) authorKey(id string) string {
	return r.prefix + "author:" + id
}

func (r *RedisRepo) bookKey(id string) string {
	return r.prefix + "book:" + id
}

func (r *RedisRepo) SaveAuthor(ctx context.Context, a Author) error {
	return r.put(ctx, r.authorKey(a.ID), a)
}

func (r *RedisRepo) SaveBook(ctx context.Context, b Book) error {
	return r.put(ctx, r.bookKey(b.ID), b)
}

func (r *RedisRepo) FindAuthorByID(ctx context.Context, id string) (Author, error) {
	var a Author
	if err := r.get(ctx, r.authorKey(id), &a); err != nil {
		return Author{}, err
	}
	return a, nil
}

func (r *RedisRepo) FindBookByID(ctx context.Context, id string) (Book, error) {
	var b Book
	if err := r.get(ctx, r.bookKey(id), &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

func (r *RedisRepo) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
