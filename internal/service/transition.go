package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
)

// Operation names a moderation action.
type Operation string

const (
	OpApprove     Operation = "approve"
	OpReject      Operation = "reject"
	OpSetActive   Operation = "activate"
	OpSetInactive Operation = "deactivate"
)

// rule is one row group of the state graph: the statuses an operation may
// start from, where it leads, and who may perform it.
type rule struct {
	from    []model.Status
	to      model.Status
	allowed func(model.Role) bool
	verb    string // past tense, for activity messages
}

func reviewerOrAdmin(r model.Role) bool { return r.CanReview() }
func adminOnly(r model.Role) bool       { return r == model.RoleAdmin }

// THE STATE GRAPH:
//
//	pending ──approve──▶ approved ──activate/deactivate──▶ active ⇄ inactive
//	   │
//	   └────reject─────▶ rejected (terminal)
//
// Every pair not listed here is illegal. In particular pending can never go
// straight to active or inactive, and nothing leaves rejected.
var rules = map[Operation]rule{
	OpApprove: {
		from:    []model.Status{model.StatusPending},
		to:      model.StatusApproved,
		allowed: reviewerOrAdmin,
		verb:    "approved",
	},
	OpReject: {
		from:    []model.Status{model.StatusPending},
		to:      model.StatusRejected,
		allowed: reviewerOrAdmin,
		verb:    "rejected",
	},
	OpSetActive: {
		from:    []model.Status{model.StatusApproved, model.StatusInactive},
		to:      model.StatusActive,
		allowed: adminOnly,
		verb:    "activated",
	},
	OpSetInactive: {
		from:    []model.Status{model.StatusApproved, model.StatusActive},
		to:      model.StatusInactive,
		allowed: adminOnly,
		verb:    "deactivated",
	},
}

// CanTransition reports whether the state graph has an edge from -> to.
// It says nothing about roles.
func CanTransition(from, to model.Status) bool {
	for _, r := range rules {
		if r.to == to && slices.Contains(r.from, from) {
			return true
		}
	}
	return false
}

// Approve moves a pending card to approved. Reviewer or admin.
func (s *CardService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Card, error) {
	return s.transition(ctx, actor, id, OpApprove)
}

// Reject moves a pending card to rejected, where it stays. Reviewer or admin.
func (s *CardService) Reject(ctx context.Context, actor model.Actor, id string) (*model.Card, error) {
	return s.transition(ctx, actor, id, OpReject)
}

// SetActive puts an approved or inactive card on display. Admin only.
func (s *CardService) SetActive(ctx context.Context, actor model.Actor, id string) (*model.Card, error) {
	return s.transition(ctx, actor, id, OpSetActive)
}

// SetInactive takes an approved or active card off display. Admin only.
func (s *CardService) SetInactive(ctx context.Context, actor model.Actor, id string) (*model.Card, error) {
	return s.transition(ctx, actor, id, OpSetInactive)
}

// SetDisplayStatus is the admin status endpoint: target must be active or
// inactive and is routed to SetActive or SetInactive.
func (s *CardService) SetDisplayStatus(ctx context.Context, actor model.Actor, id string, target model.Status) (*model.Card, error) {
	switch target {
	case model.StatusActive:
		return s.SetActive(ctx, actor, id)
	case model.StatusInactive:
		return s.SetInactive(ctx, actor, id)
	default:
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("status must be %s or %s, got %q", model.StatusActive, model.StatusInactive, target))
	}
}

// transition performs one operation of the state graph.
//
// CONCURRENCY:
// The per-card lock is taken BEFORE the transaction starts, so a second
// request on the same card waits here and then reads the status the first
// one committed. That read-check-write plus the activity append is one unit:
//
//	lock(id)
//	  BEGIN
//	    SELECT card           -> NotFound?
//	    check rule            -> IllegalTransition?
//	    UPDATE status WHERE status = from   (compare-and-set)
//	    INSERT activity
//	  COMMIT
//	unlock(id)
//
// The compare-and-set is a second guard for writers outside this process.
// Cards with different ids use different locks and never wait on each other.
func (s *CardService) transition(ctx context.Context, actor model.Actor, id string, op Operation) (*model.Card, error) {
	r, ok := rules[op]
	if !ok {
		return nil, apperror.InvalidOperation("operation", fmt.Sprintf("unknown operation %q", op))
	}
	if err := authorize(actor, r.allowed(actor.Role), string(op)+" cards"); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		card  *model.Card
		entry *model.ActivityEntry
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		card, err = s.cards.GetByID(ctx, id)
		if err != nil {
			return err
		}

		from := card.Status
		if !CanTransition(from, r.to) {
			return apperror.IllegalTransition(id, string(from), string(r.to))
		}

		now := s.now().UTC()
		if err := s.cards.SetStatus(ctx, id, from, r.to, now); err != nil {
			return err
		}

		entry = &model.ActivityEntry{
			CardID:     id,
			FromStatus: from,
			ToStatus:   r.to,
			Actor:      actor.Label(),
			Timestamp:  now,
			Message:    fmt.Sprintf("%s %s %q", actor.Label(), r.verb, card.Title),
		}
		if err := s.feed.Append(ctx, entry); err != nil {
			return err
		}

		card.Status = r.to
		card.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logger.Warn("card transition refused",
			slog.String("id", id),
			slog.String("operation", string(op)),
			slog.String("actor", actor.Label()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s card %s: %w", op, id, err)
	}

	s.logger.Info("card transitioned",
		slog.String("id", id),
		slog.String("from", string(entry.FromStatus)),
		slog.String("to", string(entry.ToStatus)),
		slog.String("actor", actor.Label()),
	)
	return card, nil
}
