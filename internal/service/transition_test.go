package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
)

// =========================================================================
// STATE GRAPH
// =========================================================================

func TestCanTransition(t *testing.T) {
	legal := map[[2]model.Status]bool{
		{model.StatusPending, model.StatusApproved}:  true,
		{model.StatusPending, model.StatusRejected}:  true,
		{model.StatusApproved, model.StatusActive}:   true,
		{model.StatusApproved, model.StatusInactive}: true,
		{model.StatusActive, model.StatusInactive}:   true,
		{model.StatusInactive, model.StatusActive}:   true,
	}

	// Every (from, to) pair not in the table must be illegal.
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				assert.Equal(t, legal[[2]model.Status{from, to}], CanTransition(from, to))
			})
		}
	}
}

// statusFor walks a fresh card into the given status.
func statusFor(t *testing.T, svc *CardService, status model.Status) *model.Card {
	t.Helper()
	ctx := context.Background()
	card := mustCreate(t, svc, "card in "+string(status))

	var err error
	switch status {
	case model.StatusPending:
	case model.StatusApproved:
		_, err = svc.Approve(ctx, rita, card.ID)
	case model.StatusRejected:
		_, err = svc.Reject(ctx, rita, card.ID)
	case model.StatusActive:
		mustActivate(t, svc, card.ID)
	case model.StatusInactive:
		_, err = svc.Approve(ctx, rita, card.ID)
		if err == nil {
			_, err = svc.SetInactive(ctx, ada, card.ID)
		}
	}
	require.NoError(t, err)
	return card
}

func TestTransitions_FromEveryStatus(t *testing.T) {
	ops := []struct {
		name string
		to   model.Status
		run  func(svc *CardService, id string) (*model.Card, error)
	}{
		{"approve", model.StatusApproved, func(s *CardService, id string) (*model.Card, error) {
			return s.Approve(context.Background(), ada, id)
		}},
		{"reject", model.StatusRejected, func(s *CardService, id string) (*model.Card, error) {
			return s.Reject(context.Background(), ada, id)
		}},
		{"setActive", model.StatusActive, func(s *CardService, id string) (*model.Card, error) {
			return s.SetActive(context.Background(), ada, id)
		}},
		{"setInactive", model.StatusInactive, func(s *CardService, id string) (*model.Card, error) {
			return s.SetInactive(context.Background(), ada, id)
		}},
	}

	for _, from := range model.Statuses {
		for _, op := range ops {
			t.Run(fmt.Sprintf("%s from %s", op.name, from), func(t *testing.T) {
				svc, db := newTestService(t)
				card := statusFor(t, svc, from)
				before, err := db.ListByCard(context.Background(), card.ID)
				require.NoError(t, err)

				got, err := op.run(svc, card.ID)

				after, _ := db.ListByCard(context.Background(), card.ID)
				if CanTransition(from, op.to) {
					require.NoError(t, err)
					assert.Equal(t, op.to, got.Status)
					assert.Len(t, after, len(before)+1, "exactly one entry per transition")
					return
				}

				assert.ErrorIs(t, err, apperror.ErrIllegalTransition)
				assert.Len(t, after, len(before), "a refused transition writes nothing")
				stored, _ := svc.Get(context.Background(), ada, card.ID)
				assert.Equal(t, from, stored.Status)
			})
		}
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), rita, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// ROLES
// =========================================================================

func TestTransition_Roles(t *testing.T) {
	tests := []struct {
		name    string
		actor   model.Actor
		op      func(s *CardService, ctx context.Context, a model.Actor, id string) (*model.Card, error)
		from    model.Status
		wantErr error
	}{
		{"anonymous approve", nobody, (*CardService).Approve, model.StatusPending, apperror.ErrUnauthorized},
		{"member approve", mia, (*CardService).Approve, model.StatusPending, apperror.ErrForbidden},
		{"member reject", mia, (*CardService).Reject, model.StatusPending, apperror.ErrForbidden},
		{"reviewer approve", rita, (*CardService).Approve, model.StatusPending, nil},
		{"reviewer reject", rita, (*CardService).Reject, model.StatusPending, nil},
		{"reviewer activate", rita, (*CardService).SetActive, model.StatusApproved, apperror.ErrForbidden},
		{"reviewer deactivate", rita, (*CardService).SetInactive, model.StatusApproved, apperror.ErrForbidden},
		{"admin approve", ada, (*CardService).Approve, model.StatusPending, nil},
		{"admin activate", ada, (*CardService).SetActive, model.StatusApproved, nil},
		// The role check comes first: a forbidden actor never learns
		// whether the transition would have been legal.
		{"member on rejected card", mia, (*CardService).SetActive, model.StatusRejected, apperror.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			card := statusFor(t, svc, tt.from)

			_, err := tt.op(svc, context.Background(), tt.actor, card.ID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// =========================================================================
// LIFECYCLE PROPERTIES
// =========================================================================

func TestLifecycle_FourEntriesInOrder(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	card := mustCreate(t, svc, "Happy Birthday!")

	_, err := svc.Approve(ctx, rita, card.ID)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, ada, card.ID)
	require.NoError(t, err)
	_, err = svc.SetInactive(ctx, ada, card.ID)
	require.NoError(t, err)
	last, err := svc.SetActive(ctx, ada, card.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, last.Status)

	entries, err := db.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	want := [][2]model.Status{
		{model.StatusPending, model.StatusApproved},
		{model.StatusApproved, model.StatusActive},
		{model.StatusActive, model.StatusInactive},
		{model.StatusInactive, model.StatusActive},
	}
	for i, e := range entries {
		assert.Equal(t, want[i], [2]model.Status{e.FromStatus, e.ToStatus}, "entry %d", i)
		assert.Equal(t, card.ID, e.CardID)
	}
	assert.Equal(t, "rita", entries[0].Actor)
	assert.Equal(t, `rita approved "Happy Birthday!"`, entries[0].Message)
	assert.Equal(t, "ada", entries[1].Actor)
}

func TestReject_Twice(t *testing.T) {
	svc, _ := newTestService(t)
	card := mustCreate(t, svc, "nope")

	_, err := svc.Reject(context.Background(), rita, card.ID)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), rita, card.ID)
	assert.ErrorIs(t, err, apperror.ErrIllegalTransition)
}

func TestApprove_IsNotIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	card := mustCreate(t, svc, "double click")

	_, err := svc.Approve(context.Background(), rita, card.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), rita, card.ID)
	assert.ErrorIs(t, err, apperror.ErrIllegalTransition)
}

func TestSetDisplayStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	card := statusFor(t, svc, model.StatusApproved)

	got, err := svc.SetDisplayStatus(ctx, ada, card.ID, model.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)

	got, err = svc.SetDisplayStatus(ctx, ada, card.ID, model.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, got.Status)

	for _, bad := range []model.Status{model.StatusApproved, model.StatusPending, "archived"} {
		_, err = svc.SetDisplayStatus(ctx, ada, card.ID, bad)
		assert.ErrorIs(t, err, apperror.ErrValidation, "target %q", bad)
	}
}

// =========================================================================
// CONCURRENCY
// =========================================================================

// Approve and reject race on one pending card: exactly one wins, the other
// sees the winner's status and fails, and exactly one entry is written.
func TestConcurrentApproveReject(t *testing.T) {
	const rounds = 10

	for round := 0; round < rounds; round++ {
		svc, db := newTestService(t)
		card := mustCreate(t, svc, "contested")

		var (
			successes atomic.Int32
			illegal   atomic.Int32
		)
		start := make(chan struct{})
		g, ctx := errgroup.WithContext(context.Background())

		for i := 0; i < 8; i++ {
			op := svc.Approve
			if i%2 == 1 {
				op = svc.Reject
			}
			g.Go(func() error {
				<-start
				_, err := op(ctx, rita, card.ID)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, apperror.ErrIllegalTransition):
					illegal.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		close(start)
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), successes.Load(), "round %d", round)
		assert.Equal(t, int32(7), illegal.Load(), "round %d", round)

		entries, err := db.ListByCard(context.Background(), card.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "round %d", round)

		stored, err := svc.Get(context.Background(), ada, card.ID)
		require.NoError(t, err)
		assert.Equal(t, entries[0].ToStatus, stored.Status, "entry matches the winning status")
	}
}

// Transitions on different cards do not block each other and all succeed.
func TestConcurrentTransitions_DifferentCards(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = mustCreate(t, svc, fmt.Sprintf("card %d", i)).ID
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if _, err := svc.Approve(ctx, rita, id); err != nil {
				return err
			}
			_, err := svc.SetActive(ctx, ada, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := db.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 2*len(ids))
	assert.Zero(t, svc.locks.size(), "every card lock was released")
}
