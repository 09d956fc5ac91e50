package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/repository"
)

// ActivityService is the activity feed: an append-only log of status
// transitions read by the admin dashboard.
//
// Only the transition engine writes to it, and it always does so with the
// ctx of its open transaction, so an entry is committed together with the
// status change it describes or not at all.
type ActivityService struct {
	repo   repository.ActivityRepository
	logger *slog.Logger
}

func NewActivityService(repo repository.ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{repo: repo, logger: logger}
}

// Append records one transition. The entry must name its card, both
// statuses and the actor; Seq and (when zero) Timestamp are filled in by
// the store.
func (s *ActivityService) Append(ctx context.Context, entry *model.ActivityEntry) error {
	switch {
	case entry == nil:
		return apperror.ValidationFailed("entry", "activity entry is required")
	case strings.TrimSpace(entry.CardID) == "":
		return apperror.ValidationFailed("cardId", "activity entry needs a card id")
	case !entry.FromStatus.Valid():
		return apperror.ValidationFailed("fromStatus", fmt.Sprintf("unknown status %q", entry.FromStatus))
	case !entry.ToStatus.Valid():
		return apperror.ValidationFailed("toStatus", fmt.Sprintf("unknown status %q", entry.ToStatus))
	case strings.TrimSpace(entry.Actor) == "":
		return apperror.ValidationFailed("actor", "activity entry needs an actor")
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("appending activity: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries, newest first.
// limit must be positive; the HTTP layer applies its own default and cap.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		return nil, apperror.ValidationFailed("limit", "limit must be a positive integer")
	}

	entries, err := s.repo.Recent(ctx, limit)
	if err != nil {
		s.logger.Error("failed to read recent activity", slog.String("error", err.Error()))
		return nil, fmt.Errorf("reading recent activity: %w", err)
	}
	return entries, nil
}

// ForCard returns every entry recorded for one card, oldest first.
// Entries outlive their card, so a deleted card still has a history.
func (s *ActivityService) ForCard(ctx context.Context, cardID string) ([]model.ActivityEntry, error) {
	if strings.TrimSpace(cardID) == "" {
		return nil, apperror.ValidationFailed("id", "card id is required")
	}

	entries, err := s.repo.ListByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("reading activity of card %s: %w", cardID, err)
	}
	return entries, nil
}
