package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

const selectUser = `
SELECT id, name, age, email, password, avatar, created_at, updated_at
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, name, age, email, password, avatar, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		nullInt(user.Age),
		user.Email,
		user.Password,
		nullBytes(user.Avatar),
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := replaceTokens(ctx, tx, user.ID, user.Tokens); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user insert: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	updatedAt := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE users
SET name=?, age=?, email=?, password=?, avatar=?, updated_at=?
WHERE id=?`,
		user.Name,
		nullInt(user.Age),
		user.Email,
		user.Password,
		nullBytes(user.Avatar),
		updatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("update user %s: %w", user.ID, repository.ErrNotFound)
	}

	if err := replaceTokens(ctx, tx, user.ID, user.Tokens); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user update: %w", err)
	}
	user.UpdatedAt = updatedAt
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`
WHERE id = ?`,
		id,
	)
	return r.load(ctx, row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`
WHERE email = ?`,
		email,
	)
	return r.load(ctx, row)
}

func (r *UserRepository) GetByIDAndToken(ctx context.Context, id, token string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`
WHERE id = ?
  AND EXISTS (SELECT 1 FROM user_tokens t WHERE t.user_id = users.id AND t.token = ?)`,
		id,
		token,
	)
	return r.load(ctx, row)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("delete user %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) load(ctx context.Context, row *sql.Row) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	tokens, err := r.listTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Tokens = tokens
	return user, nil
}

func (r *UserRepository) listTokens(ctx context.Context, userID string) ([]domain.AuthToken, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT token, created_at
FROM user_tokens
WHERE user_id=?
ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.AuthToken
	for rows.Next() {
		var token domain.AuthToken
		if err := rows.Scan(&token.Token, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user token: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// replaceTokens rewrites the token rows of a user so their order matches the slice.
func replaceTokens(ctx context.Context, tx *sql.Tx, userID string, tokens []domain.AuthToken) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id=?`, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}

	for _, token := range tokens {
		createdAt := token.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO user_tokens (user_id, token, created_at)
VALUES (?, ?, ?)`,
			userID,
			token.Token,
			createdAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert user token: %w", err)
		}
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user domain.User
		age  sql.NullInt64
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&age,
		&user.Email,
		&user.Password,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.MarkPasswordHashed(user.Password)
	if age.Valid {
		v := int(age.Int64)
		user.Age = &v
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
