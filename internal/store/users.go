package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"melodia/internal/models"
)

// CreateUser inserts an account with an already hashed credential and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(passwordHash) == 0 {
		return 0, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, email, passwordHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserByEmail looks up an account by its login email.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UserByID returns the account with the given id.
func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, created_at
		FROM users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// DeleteUser removes an account. Subscriptions and playlists cascade.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
