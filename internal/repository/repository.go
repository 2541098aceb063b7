package repository

import (
	"context"
	"database/sql"
	"time"

	"stovelink"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*stovelink.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e stovelink.StoveEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]stovelink.StoveEvent, error)
}

type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
