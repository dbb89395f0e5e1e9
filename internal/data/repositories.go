package data

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Models struct {
	Events     EventModel
	Videos     VideoModel
	Thumbnails ThumbnailModel
}

func NewModels(db *sql.DB) Models {
	return Models{
		Events:     EventModel{DB: db},
		Videos:     VideoModel{DB: db},
		Thumbnails: ThumbnailModel{DB: db},
	}
}
