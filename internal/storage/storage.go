// Package storage defines the persistence interfaces and their implementations.
package storage

import (
	"context"
	"errors"

	"ticketwatch/internal/model"
)

// ErrNotFound is returned when a watch request does not exist.
var ErrNotFound = errors.New("not found")

// WatchStore persists watch requests edited through the bot.
type WatchStore interface {
	CreateWatch(ctx context.Context, w *model.WatchRequest) error
	GetWatch(ctx context.Context, id int64) (*model.WatchRequest, error)
	ListWatches(ctx context.Context) ([]model.WatchRequest, error)
	DeleteWatch(ctx context.Context, id int64) error
	DeleteWatchesByMovie(ctx context.Context, movie string) (int, error)
}

// StateStore persists fired alert records. Save replaces the whole state.
type StateStore interface {
	Load(ctx context.Context) (model.AlertState, error)
	Save(ctx context.Context, state model.AlertState) error
}

// AlertPurger removes a fired key so the alert can fire again.
type AlertPurger interface {
	DeleteAlert(ctx context.Context, key model.AlertKey) error
}
