// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// For cards the business rules are the moderation workflow:
//
//   - who may see a card (public viewers only see active ones)
//   - who may edit or delete it (submitter, admins)
//   - which status changes are legal (the table in transition.go)
//   - that every status change leaves exactly one activity entry
//
// None of that lives in the handlers or in SQL. Handlers translate HTTP into
// calls on CardService; the repository only stores what it is given.
//
// DEPENDENCY INJECTION:
// CardService takes repository interfaces, NOT a *sqlite.DB. Tests hand it
// the real SQLite store for behaviour and a failing mock for storage errors.
package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxMessageLength     = 5000
	MaxTags              = 20
	MaxTagLength         = 50
	MaxImageURLLength    = 2048
)

// CreateCardInput holds the submitted fields of a new card.
type CreateCardInput struct {
	Title          string
	Description    string
	Message        string
	RecipientName  string
	RecipientEmail string
	ImageURL       string
	Tags           []string
}

// Stats is the dashboard summary.
//
// ByStatus and Total are the plain counts. The remaining fields are the
// figures the admin dashboard shows; ApprovedCards counts every card that
// passed review, whether or not it is currently on display.
type Stats struct {
	ByStatus       model.StatusCounts `json:"byStatus"`
	Total          int64              `json:"total"`
	TotalCards     int64              `json:"totalCards"`
	PendingReviews int64              `json:"pendingReviews"`
	ApprovedCards  int64              `json:"approvedCards"`
	RejectedCards  int64              `json:"rejectedCards"`
}

// CardService handles business logic for greeting cards: the record store
// operations, search and, in transition.go, the status transition engine.
type CardService struct {
	cards    repository.CardRepository
	tx       repository.TxManager
	feed     *ActivityService
	locks    *keyedMutex
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// NewCardService creates a CardService.
//
// feed is where transitions are recorded. It must share its store with tx:
// the entry is appended inside the transaction that changes the status.
func NewCardService(
	cards repository.CardRepository,
	tx repository.TxManager,
	feed *ActivityService,
	logger *slog.Logger,
) *CardService {
	return &CardService{
		cards:    cards,
		tx:       tx,
		feed:     feed,
		locks:    newKeyedMutex(),
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Create validates and saves a new card. It always starts out pending.
func (s *CardService) Create(ctx context.Context, actor model.Actor, in CreateCardInput) (*model.Card, error) {
	card := &model.Card{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Message:        strings.TrimSpace(in.Message),
		RecipientName:  strings.TrimSpace(in.RecipientName),
		RecipientEmail: strings.TrimSpace(in.RecipientEmail),
		ImageURL:       strings.TrimSpace(in.ImageURL),
		Tags:           model.NormalizeTags(in.Tags),
		SubmittedBy:    actor.ID,
		CreatedAt:      s.now().UTC(),
	}
	if actor.IsAnonymous() {
		card.SubmittedBy = "anonymous"
	}

	if err := s.validateCard(card); err != nil {
		return nil, err
	}

	if err := s.cards.Create(ctx, card); err != nil {
		s.logger.Error("failed to create card",
			slog.String("title", card.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating card: %w", err)
	}

	s.logger.Info("card submitted",
		slog.String("id", card.ID),
		slog.String("title", card.Title),
		slog.String("submittedBy", card.SubmittedBy),
	)
	return card, nil
}

// Get returns one card as the viewer may see it.
//
// Reviewers and admins see every card. Anyone else sees active cards, plus
// their own submissions whatever their status. A card the viewer may not see
// is reported as not found, so its existence does not leak.
func (s *CardService) Get(ctx context.Context, viewer model.Actor, id string) (*model.Card, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "card id is required")
	}

	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting card %s: %w", id, err)
	}
	if !canView(viewer, card) {
		return nil, apperror.NotFound("card", id)
	}
	return card, nil
}

// Update applies patch to the card's non-status fields.
//
// Only the submitter or an admin may edit. A patch that tries to set the
// status fails with InvalidOperationError before anything is read.
func (s *CardService) Update(ctx context.Context, actor model.Actor, id string, patch model.CardPatch) (*model.Card, error) {
	if patch.Status != nil {
		return nil, apperror.InvalidOperation("status",
			"status cannot be changed by an update; use the moderation actions")
	}
	if actor.IsAnonymous() {
		return nil, apperror.Unauthorized("sign in to edit cards")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *model.Card
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		card, err := s.cards.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleAdmin && actor.ID != card.SubmittedBy {
			return apperror.Forbidden("only the submitter or an admin may edit this card")
		}

		if patch.Empty() {
			updated = card
			return nil
		}

		patch.Apply(card)
		trimCard(card)
		if err := s.validateCard(card); err != nil {
			return err
		}
		if err := s.cards.Update(ctx, card); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating card %s: %w", id, err)
	}

	s.logger.Info("card updated", slog.String("id", id), slog.String("actor", actor.Label()))
	return updated, nil
}

// Delete permanently removes a card. Admin only. Deleting a card that does
// not exist, including one deleted a moment ago, fails with NotFoundError.
//
// The card's activity entries are kept.
func (s *CardService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if err := authorize(actor, actor.Role == model.RoleAdmin, "delete cards"); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.cards.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting card %s: %w", id, err)
	}

	s.logger.Info("card deleted", slog.String("id", id), slog.String("actor", actor.Label()))
	return nil
}

// Like adds one like to an active card. Likes are an unguarded counter:
// nobody's likes are tracked, so repeats all count.
func (s *CardService) Like(ctx context.Context, viewer model.Actor, id string) (*model.Card, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var liked *model.Card
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		card, err := s.cards.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if card.Status != model.StatusActive {
			return apperror.NotFound("card", id)
		}
		liked, err = s.cards.IncrementLikes(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("liking card %s: %w", id, err)
	}

	s.logger.Debug("card liked",
		slog.String("id", id),
		slog.Int64("likes", liked.Likes),
		slog.String("viewer", viewer.Label()),
	)
	return liked, nil
}

// Search returns the cards matching q that the viewer may see, newest
// first with ties broken by id.
//
// Status and tags are filtered by the store. The text filter (case-insensitive
// substring of title or description) runs lazily as the sequence is
// consumed. The sequence ranges over a snapshot, so it can be iterated again
// and always yields the same cards.
func (s *CardService) Search(ctx context.Context, viewer model.Actor, q model.CardQuery) (iter.Seq[model.Card], error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", q.Status))
	}

	filter := repository.CardFilter{Status: q.Status, Tags: q.Tags}
	if !viewer.Role.CanReview() {
		if q.Status != "" && q.Status != model.StatusActive {
			return func(func(model.Card) bool) {}, nil
		}
		filter.Status = model.StatusActive
	}

	cards, err := s.cards.Search(ctx, filter)
	if err != nil {
		s.logger.Error("card search failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("searching cards: %w", err)
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	return func(yield func(model.Card) bool) {
		for _, c := range cards {
			if text != "" && !matchesText(c, text) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}, nil
}

// Stats counts cards per status for the dashboard.
func (s *CardService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.cards.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting cards: %w", err)
	}

	total := counts.Total()
	return &Stats{
		ByStatus:       counts,
		Total:          total,
		TotalCards:     total,
		PendingReviews: counts[model.StatusPending],
		ApprovedCards:  counts[model.StatusApproved] + counts[model.StatusActive] + counts[model.StatusInactive],
		RejectedCards:  counts[model.StatusRejected],
	}, nil
}

// validateCard checks the fields Create and Update share. The card's text
// fields are expected to be trimmed already.
func (s *CardService) validateCard(c *model.Card) error {
	required := []struct {
		field, value string
		max          int
	}{
		{"title", c.Title, MaxTitleLength},
		{"description", c.Description, MaxDescriptionLength},
		{"message", c.Message, MaxMessageLength},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.ValidationFailed(r.field, r.field+" is required")
		}
		if len(r.value) > r.max {
			return apperror.ValidationFailed(r.field,
				fmt.Sprintf("%s must be %d characters or less", r.field, r.max))
		}
	}

	if len(c.ImageURL) > MaxImageURLLength {
		return apperror.ValidationFailed("imageUrl",
			fmt.Sprintf("imageUrl must be %d characters or less", MaxImageURLLength))
	}
	if c.RecipientEmail != "" {
		if err := s.validate.Var(c.RecipientEmail, "email"); err != nil {
			return apperror.ValidationFailed("recipientEmail", "recipientEmail must be a valid email address")
		}
	}

	if len(c.Tags) > MaxTags {
		return apperror.ValidationFailed("tags", fmt.Sprintf("a card may carry at most %d tags", MaxTags))
	}
	for _, t := range c.Tags {
		if len(t) > MaxTagLength {
			return apperror.ValidationFailed("tags",
				fmt.Sprintf("tag %q is longer than %d characters", t, MaxTagLength))
		}
	}
	return nil
}

func trimCard(c *model.Card) {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Message = strings.TrimSpace(c.Message)
	c.RecipientName = strings.TrimSpace(c.RecipientName)
	c.RecipientEmail = strings.TrimSpace(c.RecipientEmail)
	c.ImageURL = strings.TrimSpace(c.ImageURL)
}

// matchesText expects needle to be lower-cased already.
func matchesText(c model.Card, needle string) bool {
	return strings.Contains(strings.ToLower(c.Title), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle)
}

func canView(viewer model.Actor, c *model.Card) bool {
	return viewer.Role.CanReview() ||
		c.Status == model.StatusActive ||
		(!viewer.IsAnonymous() && viewer.ID == c.SubmittedBy)
}

// authorize turns a failed permission check into the right error kind:
// unauthenticated callers get Unauthorized, everyone else Forbidden.
func authorize(actor model.Actor, allowed bool, action string) error {
	if allowed {
		return nil
	}
	if actor.IsAnonymous() {
		return apperror.Unauthorized("sign in to " + action)
	}
	return apperror.Forbidden(fmt.Sprintf("role %s may not %s", actor.Role, action))
}
