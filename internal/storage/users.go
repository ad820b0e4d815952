package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"registros/internal/auth"
)

// uniqueViolation matches duplicate-key errors from either driver.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.UTC())
	if err != nil {
		if uniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, email, password_hash, created_at FROM users WHERE `+where+` = ?`), arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("selecting user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (auth.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, userID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) SaveResetToken(ctx context.Context, t auth.ResetToken) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO password_resets (token, user_id, expires_at, used) VALUES (?, ?, ?, ?)`),
		t.Token, t.UserID, t.ExpiresAt.UTC(), false)
	if err != nil {
		return fmt.Errorf("inserting reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken checks expiry in Go and flips used with a conditional
// update, so two concurrent resets cannot both win.
func (s *Store) ConsumeResetToken(ctx context.Context, token string, now time.Time) (auth.ResetToken, error) {
	t := auth.ResetToken{Token: token}
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT user_id, expires_at, used FROM password_resets WHERE token = ?`), token).
		Scan(&t.UserID, &t.ExpiresAt, &t.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ResetToken{}, auth.ErrInvalidResetToken
	}
	if err != nil {
		return auth.ResetToken{}, fmt.Errorf("selecting reset token: %w", err)
	}
	if t.Used || !now.Before(t.ExpiresAt) {
		return auth.ResetToken{}, auth.ErrInvalidResetToken
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE password_resets SET used = ? WHERE token = ? AND used = ?`), true, token, false)
	if err != nil {
		return auth.ResetToken{}, fmt.Errorf("consuming reset token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ResetToken{}, auth.ErrInvalidResetToken
	}
	t.Used = true
	return t, nil
}
