package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is the root of every missing-record error returned by the Store.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists signals the username or email is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned for unknown user ids, including foreign-key
	// violations on rows that reference users.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrArtistNotFound signals a missing artist record.
	ErrArtistNotFound = fmt.Errorf("artist %w", ErrNotFound)
	// ErrAlbumNotFound signals a missing album record.
	ErrAlbumNotFound = fmt.Errorf("album %w", ErrNotFound)
	// ErrSongNotFound signals a missing song record.
	ErrSongNotFound = fmt.Errorf("song %w", ErrNotFound)
	// ErrPlaylistNotFound signals a missing playlist record.
	ErrPlaylistNotFound = fmt.Errorf("playlist %w", ErrNotFound)
	// ErrPlaylistSongNotFound signals the song is not part of the playlist.
	ErrPlaylistSongNotFound = fmt.Errorf("playlist song %w", ErrNotFound)
	// ErrSubscriptionNotFound signals no qualifying subscription row.
	ErrSubscriptionNotFound = fmt.Errorf("subscription %w", ErrNotFound)
)

// DefaultTimeout bounds every store call when no explicit timeout is given.
const DefaultTimeout = 5 * time.Second

// Store provides persistence backed by Postgres.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Option customises a Store.
type Option func(*Store)

// WithTimeout bounds each store call. A non-positive value disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New sets up a Store using the provided database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks that the database answers within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// lockUser serialises writes that depend on per-user counts or windows for the
// remainder of tx.
func lockUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("lock user %d: %w", userID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
