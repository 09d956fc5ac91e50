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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

var userColumns = []string{
	"id", "username", "role", "github_id", "email", "avatar_url",
	"password_hash", "created_at", "updated_at",
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                model.User
		role             string
		githubID         sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(
		&u.ID, &u.Username, &role, &githubID, &u.Email, &u.AvatarURL,
		&u.PasswordHash, &created, &updated,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.GitHubID = githubID.Int64
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	return &u, nil
}

// Upsert inserts or updates a member account based on their GitHub ID.
//
// Generate an ID only for new users. If a user with this github_id already
// exists we KEEP their internal ID and role, refreshing only the profile
// fields GitHub may have changed.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	return db.RunInTx(ctx, func(ctx context.Context) error {
		var existingID, existingRole string
		err := db.q(ctx).QueryRowContext(ctx,
			`SELECT id, role FROM users WHERE github_id = ?`, user.GitHubID,
		).Scan(&existingID, &existingRole)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return apperror.StorageFailed("looking up user by github id", err)
		}

		now := time.Now().UTC()
		user.UpdatedAt = now

		if existingID != "" {
			user.ID = existingID
			user.Role = model.Role(existingRole)
			_, err = db.q(ctx).ExecContext(ctx,
				`UPDATE users SET username = ?, email = ?, avatar_url = ?, updated_at = ?
				 WHERE id = ?`,
				user.Username, user.Email, user.AvatarURL, toUnix(now), user.ID,
			)
			if err != nil {
				return apperror.StorageFailed("updating user "+user.ID, err)
			}
			return db.fillTimestamps(ctx, user)
		}

		user.ID = xid.New().String()
		user.CreatedAt = now
		if !user.Role.Valid() {
			user.Role = model.RoleMember
		}
		return db.insertUser(ctx, user, sql.NullInt64{Int64: user.GitHubID, Valid: true})
	})
}

// UpsertStaff creates a password account, or refreshes the role and hash of
// an existing one with the same username. Used to bootstrap reviewers and
// admins from configuration on every start.
func (db *DB) UpsertStaff(ctx context.Context, user *model.User) error {
	return db.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := db.GetByUsername(ctx, user.Username)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		user.UpdatedAt = now

		if existing != nil {
			user.ID = existing.ID
			user.CreatedAt = existing.CreatedAt
			_, err := db.q(ctx).ExecContext(ctx,
				`UPDATE users SET role = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
				string(user.Role), user.PasswordHash, toUnix(now), user.ID,
			)
			if err != nil {
				return apperror.StorageFailed("updating staff user "+user.Username, err)
			}
			return nil
		}

		user.ID = xid.New().String()
		user.CreatedAt = now
		return db.insertUser(ctx, user, sql.NullInt64{})
	})
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserWhere(ctx, sq.Eq{"id": id}, id)
}

// GetByUsername retrieves a user by their unique username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserWhere(ctx, sq.Eq{"username": username}, username)
}

func (db *DB) getUserWhere(ctx context.Context, where sq.Eq, key string) (*model.User, error) {
	query, args, err := sq.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, apperror.StorageFailed("building user select", err)
	}

	u, err := scanUser(db.q(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, apperror.StorageFailed("getting user "+key, err)
	}
	return u, nil
}

func (db *DB) insertUser(ctx context.Context, user *model.User, githubID sql.NullInt64) error {
	query, args, err := sq.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID, user.Username, string(user.Role), githubID, user.Email,
			user.AvatarURL, user.PasswordHash, toUnix(user.CreatedAt), toUnix(user.UpdatedAt),
		).
		ToSql()
	if err != nil {
		return apperror.StorageFailed("building user insert", err)
	}
	if _, err := db.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return apperror.StorageFailed("inserting user "+user.Username, err)
	}
	return nil
}

func (db *DB) fillTimestamps(ctx context.Context, user *model.User) error {
	var created int64
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE id = ?`, user.ID,
	).Scan(&created)
	if err != nil {
		return apperror.StorageFailed("reading user "+user.ID, err)
	}
	user.CreatedAt = fromUnix(created)
	return nil
}
