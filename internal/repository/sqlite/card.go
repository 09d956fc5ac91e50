package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops implementing CardRepository the build fails here, not at the
// distant call site in server.go.
var _ repository.CardRepository = (*DB)(nil)

// cardColumns is the SELECT list scanCard expects, in order.
var cardColumns = []string{
	"id", "title", "description", "message", "recipient_name", "recipient_email",
	"image_url", "likes", "status", "submitted_by", "created_at", "updated_at",
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (model.Card, error) {
	var (
		c                model.Card
		status           string
		created, updated int64
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Message, &c.RecipientName, &c.RecipientEmail,
		&c.ImageURL, &c.Likes, &status, &c.SubmittedBy, &created, &updated,
	)
	if err != nil {
		return model.Card{}, err
	}
	c.Status = model.Status(status)
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	c.Tags = []string{}
	return c, nil
}

// Create inserts a new card and its tags.
//
// The repository owns identity: ID is always generated here, and status is
// forced to pending so no caller can create a pre-approved card. CreatedAt is
// kept if the caller set it (the service stamps it with its clock), otherwise
// it is set to now.
func (db *DB) Create(ctx context.Context, card *model.Card) error {
	card.ID = xid.New().String()
	card.Status = model.StatusPending
	card.Likes = 0
	card.Tags = model.NormalizeTags(card.Tags)
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	card.UpdatedAt = card.CreatedAt

	return db.RunInTx(ctx, func(ctx context.Context) error {
		query, args, err := sq.Insert("cards").
			Columns(cardColumns...).
			Values(
				card.ID, card.Title, card.Description, card.Message, card.RecipientName,
				card.RecipientEmail, card.ImageURL, card.Likes, string(card.Status),
				card.SubmittedBy, toUnix(card.CreatedAt), toUnix(card.UpdatedAt),
			).
			ToSql()
		if err != nil {
			return apperror.StorageFailed("building card insert", err)
		}
		if _, err := db.q(ctx).ExecContext(ctx, query, args...); err != nil {
			return apperror.StorageFailed("creating card", err)
		}
		return db.insertTags(ctx, card.ID, card.Tags)
	})
}

// GetByID retrieves a single card, tags included.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Card, error) {
	query, args, err := sq.Select(cardColumns...).From("cards").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building card select", err)
	}

	card, err := scanCard(db.q(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", id)
		}
		return nil, apperror.StorageFailed("getting card "+id, err)
	}

	tags, err := db.tagsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if t, ok := tags[id]; ok {
		card.Tags = t
	}
	return &card, nil
}

// Update writes every non-status field of card and replaces its tag set.
// status, likes, submitted_by and created_at are never touched here.
func (db *DB) Update(ctx context.Context, card *model.Card) error {
	card.Tags = model.NormalizeTags(card.Tags)
	card.UpdatedAt = time.Now().UTC()

	return db.RunInTx(ctx, func(ctx context.Context) error {
		query, args, err := sq.Update("cards").
			Set("title", card.Title).
			Set("description", card.Description).
			Set("message", card.Message).
			Set("recipient_name", card.RecipientName).
			Set("recipient_email", card.RecipientEmail).
			Set("image_url", card.ImageURL).
			Set("updated_at", toUnix(card.UpdatedAt)).
			Where(sq.Eq{"id": card.ID}).
			ToSql()
		if err != nil {
			return apperror.StorageFailed("building card update", err)
		}

		result, err := db.q(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return apperror.StorageFailed("updating card "+card.ID, err)
		}
		if err := requireRow(result, "card", card.ID); err != nil {
			return err
		}

		if _, err := db.q(ctx).ExecContext(ctx,
			`DELETE FROM card_tags WHERE card_id = ?`, card.ID,
		); err != nil {
			return apperror.StorageFailed("clearing tags of card "+card.ID, err)
		}
		return db.insertTags(ctx, card.ID, card.Tags)
	})
}

// SetStatus is a compare-and-set on the status column: the UPDATE only
// matches while the stored status is still from. When nothing matched, a
// follow-up read tells a missing card apart from one that already moved.
func (db *DB) SetStatus(ctx context.Context, id string, from, to model.Status, at time.Time) error {
	result, err := db.q(ctx).ExecContext(ctx,
		`UPDATE cards SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toUnix(at), id, string(from),
	)
	if err != nil {
		return apperror.StorageFailed("updating status of card "+id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperror.StorageFailed("checking rows affected", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = db.q(ctx).QueryRowContext(ctx, `SELECT status FROM cards WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("card", id)
	}
	if err != nil {
		return apperror.StorageFailed("reading status of card "+id, err)
	}
	return apperror.IllegalTransition(id, current, string(to))
}

// IncrementLikes adds one like and returns the updated card.
func (db *DB) IncrementLikes(ctx context.Context, id string) (*model.Card, error) {
	var card *model.Card
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		result, err := db.q(ctx).ExecContext(ctx,
			`UPDATE cards SET likes = likes + 1, updated_at = ? WHERE id = ?`,
			toUnix(time.Now().UTC()), id,
		)
		if err != nil {
			return apperror.StorageFailed("liking card "+id, err)
		}
		if err := requireRow(result, "card", id); err != nil {
			return err
		}
		card, err = db.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// Delete removes a card by its ID. Tags go with it (ON DELETE CASCADE);
// activity entries stay as the audit trail.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.q(ctx).ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return apperror.StorageFailed("deleting card "+id, err)
	}
	return requireRow(result, "card", id)
}

// Search returns the cards matching f, newest first with ties broken by id.
//
// TAG MATCHING IS CONJUNCTIVE:
// The subquery keeps only cards that have a row for EVERY requested tag:
//
//	SELECT card_id FROM card_tags WHERE tag IN (?, ?) GROUP BY card_id
//	HAVING COUNT(DISTINCT tag) = 2
func (db *DB) Search(ctx context.Context, f repository.CardFilter) ([]model.Card, error) {
	qb := sq.Select(cardColumns...).From("cards").OrderBy("created_at DESC", "id ASC")

	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}

	if tags := model.NormalizeTags(f.Tags); len(tags) > 0 {
		subSQL, subArgs, err := sq.Select("card_id").
			From("card_tags").
			Where(sq.Eq{"tag": tags}).
			GroupBy("card_id").
			Having("COUNT(DISTINCT tag) = ?", len(tags)).
			ToSql()
		if err != nil {
			return nil, apperror.StorageFailed("building tag filter", err)
		}
		qb = qb.Where(sq.Expr("id IN ("+subSQL+")", subArgs...))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building card search", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.StorageFailed("searching cards", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	ids := make([]string, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, apperror.StorageFailed("scanning card row", err)
		}
		cards = append(cards, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StorageFailed("iterating cards", err)
	}
	// Close before the tag query so the connection is free for it.
	rows.Close()

	tags, err := db.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if t, ok := tags[cards[i].ID]; ok {
			cards[i].Tags = t
		}
	}
	return cards, nil
}

// CountByStatus returns the number of cards in each status. Every known
// status is present in the result, zero when no card has it.
func (db *DB) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	query, args, err := sq.Select("status", "COUNT(*)").From("cards").GroupBy("status").ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building status count", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.StorageFailed("counting cards", err)
	}
	defer rows.Close()

	counts := make(model.StatusCounts, len(model.Statuses))
	for _, s := range model.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperror.StorageFailed("scanning status count", err)
		}
		counts[model.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StorageFailed("iterating status counts", err)
	}
	return counts, nil
}

func (db *DB) insertTags(ctx context.Context, cardID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	ins := sq.Insert("card_tags").Columns("card_id", "tag")
	for _, t := range tags {
		ins = ins.Values(cardID, t)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return apperror.StorageFailed("building tag insert", err)
	}
	if _, err := db.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return apperror.StorageFailed("saving tags of card "+cardID, err)
	}
	return nil
}

// tagsFor loads the tag sets of several cards in one query.
func (db *DB) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sq.Select("card_id", "tag").
		From("card_tags").
		Where(sq.Eq{"card_id": ids}).
		OrderBy("card_id", "tag").
		ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building tag select", err)
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.StorageFailed("loading tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, apperror.StorageFailed("scanning tag row", err)
		}
		out[id] = append(out[id], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StorageFailed("iterating tags", err)
	}
	return out, nil
}

// requireRow turns "0 rows affected" into a NotFound error.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.StorageFailed("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
