// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages (sqlite); services never import them.
package repository

import (
	"context"
	"time"

	"github.com/sakif/greeting-cards/internal/model"
)

// TxManager runs fn inside one storage transaction. Repository calls made
// with the ctx passed to fn join that transaction; fn's error rolls it back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CardFilter is the part of a card search the store evaluates itself.
// Free-text matching is left to the caller.
type CardFilter struct {
	Status model.Status // "" = any
	Tags   []string     // card must carry all of them
}

type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id string) (*model.Card, error)
	// Update writes the non-status fields and tags of card.
	Update(ctx context.Context, card *model.Card) error
	// SetStatus moves a card from one status to another. It fails with
	// apperror.ErrIllegalTransition if the stored status is no longer from.
	SetStatus(ctx context.Context, id string, from, to model.Status, at time.Time) error
	IncrementLikes(ctx context.Context, id string) (*model.Card, error)
	Delete(ctx context.Context, id string) error
	// Search returns matching cards newest first, ties broken by id.
	Search(ctx context.Context, f CardFilter) ([]model.Card, error)
	CountByStatus(ctx context.Context) (model.StatusCounts, error)
}

type ActivityRepository interface {
	Append(ctx context.Context, entry *model.ActivityEntry) error
	// Recent returns the newest limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error)
	// ListByCard returns one card's entries, oldest first.
	ListByCard(ctx context.Context, cardID string) ([]model.ActivityEntry, error)
}

type UserRepository interface {
	// Upsert inserts or refreshes a GitHub-linked member account.
	Upsert(ctx context.Context, user *model.User) error
	// UpsertStaff inserts or refreshes a password account keyed by username.
	UpsertStaff(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
