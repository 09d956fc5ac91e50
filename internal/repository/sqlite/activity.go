package sqlite

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

var activityColumns = []string{
	"seq", "card_id", "from_status", "to_status", "actor", "message", "created_at",
}

// Append writes one activity entry and fills in its Seq. Entries are never
// updated or deleted afterwards.
func (db *DB) Append(ctx context.Context, entry *model.ActivityEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query, args, err := sq.Insert("activity").
		Columns(activityColumns[1:]...).
		Values(
			entry.CardID, string(entry.FromStatus), string(entry.ToStatus),
			entry.Actor, entry.Message, toUnix(entry.Timestamp),
		).
		ToSql()
	if err != nil {
		return apperror.StorageFailed("building activity insert", err)
	}

	result, err := db.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return apperror.StorageFailed("appending activity for card "+entry.CardID, err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return apperror.StorageFailed("reading activity sequence", err)
	}
	entry.Seq = seq
	return nil
}

// Recent returns the newest limit entries: latest timestamp first, and for
// equal timestamps the later insertion first.
func (db *DB) Recent(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	return db.listActivity(ctx, sq.Select(activityColumns...).
		From("activity").
		OrderBy("created_at DESC", "seq DESC").
		Limit(uint64(limit)))
}

// ListByCard returns a card's entries in the order they were written.
func (db *DB) ListByCard(ctx context.Context, cardID string) ([]model.ActivityEntry, error) {
	return db.listActivity(ctx, sq.Select(activityColumns...).
		From("activity").
		Where(sq.Eq{"card_id": cardID}).
		OrderBy("created_at ASC", "seq ASC"))
}

func (db *DB) listActivity(ctx context.Context, qb sq.SelectBuilder) ([]model.ActivityEntry, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building activity select", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.StorageFailed("listing activity", err)
	}
	defer rows.Close()

	entries := make([]model.ActivityEntry, 0)
	for rows.Next() {
		var (
			e        model.ActivityEntry
			from, to string
			at       int64
		)
		if err := rows.Scan(&e.Seq, &e.CardID, &from, &to, &e.Actor, &e.Message, &at); err != nil {
			return nil, apperror.StorageFailed("scanning activity row", err)
		}
		e.FromStatus = model.Status(from)
		e.ToStatus = model.Status(to)
		e.Timestamp = fromUnix(at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StorageFailed("iterating activity", err)
	}
	return entries, nil
}
