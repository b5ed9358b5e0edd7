package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"melodia/internal/models"
)

// ReplaceSubscription opens a new [start, end) window for the user and closes
// every window of the same plan that is still effective at start. After it
// commits, the new row is the only effective one.
func (s *Store) ReplaceSubscription(ctx context.Context, userID int64, plan string, start, end time.Time) (models.Subscription, error) {
	if plan == "" {
		return models.Subscription{}, fmt.Errorf("%w: plan is required", ErrInvalidInput)
	}
	if !end.After(start) {
		return models.Subscription{}, fmt.Errorf("%w: subscription must end after it starts", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := lockUser(ctx, tx, userID); err != nil {
		return models.Subscription{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET end_date = $3
		WHERE user_id = $1 AND plan = $2 AND (end_date IS NULL OR end_date > $3)
	`, userID, plan, start); err != nil {
		return models.Subscription{}, fmt.Errorf("close subscriptions: %w", err)
	}

	sub := models.Subscription{
		UserID:    userID,
		Plan:      plan,
		StartDate: start,
		EndDate:   &end,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, plan, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, userID, plan, start, end).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Subscription{}, ErrUserNotFound
		}
		return models.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Subscription{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return sub, nil
}

// ActiveSubscription returns the effective window for the user at the given
// instant: the qualifying row with the latest end date, open-ended rows first.
func (s *Store) ActiveSubscription(ctx context.Context, userID int64, plan string, at time.Time) (models.Subscription, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		sub models.Subscription
		end sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan, start_date, end_date, created_at
		FROM subscriptions
		WHERE user_id = $1 AND plan = $2 AND (end_date IS NULL OR end_date > $3)
		ORDER BY end_date DESC NULLS FIRST, id DESC
		LIMIT 1
	`, userID, plan, at).Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.StartDate, &end, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Subscription{}, ErrSubscriptionNotFound
		}
		return models.Subscription{}, fmt.Errorf("select subscription: %w", err)
	}
	if end.Valid {
		sub.EndDate = &end.Time
	}
	return sub, nil
}

// ListSubscriptions returns every window of the user, newest first.
func (s *Store) ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan, start_date, end_date, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY start_date DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		var (
			sub models.Subscription
			end sql.NullTime
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.StartDate, &end, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if end.Valid {
			t := end.Time
			sub.EndDate = &t
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
