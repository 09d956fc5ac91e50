package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
)

func TestActivityAppend_Validation(t *testing.T) {
	feed := NewActivityService(newTestStore(t), quietLogger())

	valid := func() *model.ActivityEntry {
		return &model.ActivityEntry{
			CardID:     "c1",
			FromStatus: model.StatusPending,
			ToStatus:   model.StatusApproved,
			Actor:      "rita",
		}
	}

	tests := []struct {
		name   string
		mutate func(e *model.ActivityEntry)
	}{
		{"no card", func(e *model.ActivityEntry) { e.CardID = "" }},
		{"bad from", func(e *model.ActivityEntry) { e.FromStatus = "draft" }},
		{"bad to", func(e *model.ActivityEntry) { e.ToStatus = "" }},
		{"no actor", func(e *model.ActivityEntry) { e.Actor = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			assert.ErrorIs(t, feed.Append(context.Background(), e), apperror.ErrValidation)
		})
	}

	assert.ErrorIs(t, feed.Append(context.Background(), nil), apperror.ErrValidation)

	e := valid()
	require.NoError(t, feed.Append(context.Background(), e))
	assert.NotZero(t, e.Seq)
	assert.False(t, e.Timestamp.IsZero())
}

func TestActivityRecent(t *testing.T) {
	svc, db := newTestService(t)
	feed := NewActivityService(db, quietLogger())
	ctx := context.Background()

	a := mustCreate(t, svc, "a")
	b := mustCreate(t, svc, "b")
	_, err := svc.Approve(ctx, rita, a.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, rita, b.ID)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, ada, a.ID)
	require.NoError(t, err)

	entries, err := feed.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// newest first
	assert.Equal(t, model.StatusActive, entries[0].ToStatus)
	assert.Equal(t, model.StatusRejected, entries[1].ToStatus)
	assert.Equal(t, model.StatusApproved, entries[2].ToStatus)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
	}

	two, err := feed.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestActivityRecent_RejectsNonPositiveLimit(t *testing.T) {
	feed := NewActivityService(newTestStore(t), quietLogger())

	for _, limit := range []int{0, -1} {
		_, err := feed.Recent(context.Background(), limit)
		assert.ErrorIs(t, err, apperror.ErrValidation, "limit %d", limit)
	}
}

func TestActivityForCard_OutlivesCard(t *testing.T) {
	svc, db := newTestService(t)
	feed := NewActivityService(db, quietLogger())
	ctx := context.Background()

	card := mustCreate(t, svc, "short lived")
	_, err := svc.Reject(ctx, rita, card.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ada, card.ID))

	entries, err := feed.ForCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusRejected, entries[0].ToStatus)

	_, err = feed.ForCard(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestActivityTimestampsComeFromServiceClock(t *testing.T) {
	svc, db := newTestService(t)
	fixed := time.Date(2030, 6, 1, 9, 30, 0, 0, time.UTC)
	card := mustCreate(t, svc, "clocked")
	svc.now = func() time.Time { return fixed }

	_, err := svc.Approve(context.Background(), rita, card.ID)
	require.NoError(t, err)

	entries, err := db.ListByCard(context.Background(), card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, fixed.Equal(entries[0].Timestamp))
}
