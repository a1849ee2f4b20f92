package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type authorModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Name         string
	PersonalName string
}

func (authorModel) TableName() string {
	return "authors"
}

type bookModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string
	Description string     `gorm:"type:text"`
	AuthorIDs   []string   `gorm:"serializer:json"`
	AuthorNames []string   `gorm:"serializer:json"`
	CoverIDs    []string   `gorm:"serializer:json"`
	PublishDate *time.Time `gorm:"type:date"`
}

func (bookModel) TableName() string {
	return "books"
}

// SQLiteRepo stores records in a local SQLite file through gorm.
type SQLiteRepo struct {
	db *gorm.DB
}

// NewSQLiteRepo opens (or creates) the database file at path and makes sure the
// authors and books tables exist.
func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	gormLog := gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&authorModel{}, &bookModel{}); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) SaveAuthor(ctx context.Context, a Author) error {
	m := authorModel{ID: a.ID, Name: a.Name, PersonalName: a.PersonalName}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("save author: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) SaveBook(ctx context.Context, b Book) error {
	m := bookModel{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		AuthorIDs:   b.AuthorIDs,
		AuthorNames: b.AuthorNames,
		CoverIDs:    b.CoverIDs,
		PublishDate: b.PublishDate,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) FindAuthorByID(ctx context.Context, id string) (Author, error) {
	var m authorModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Author{}, ErrNotFound
		}
		return Author{}, fmt.Errorf("find author %s: %w", id, err)
	}
	return Author{ID: m.ID, Name: m.Name, PersonalName: m.PersonalName}, nil
}

func (r *SQLiteRepo) FindBookByID(ctx context.Context, id string) (Book, error) {
	var m bookModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("find book %s: %w", id, err)
	}
	return Book{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		AuthorIDs:   m.AuthorIDs,
		AuthorNames: m.AuthorNames,
		CoverIDs:    m.CoverIDs,
		PublishDate: m.PublishDate,
	}, nil
}

func (r *SQLiteRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
