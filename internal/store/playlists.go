package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"melodia/internal/models"
)

// ErrPlaylistLimitReached signals the user already owns limit playlists.
var ErrPlaylistLimitReached = errors.New("playlist limit reached")

// CreatePlaylist inserts a playlist for the user. When limit is positive the
// user's playlist count is checked under a per-user lock in the same
// transaction, so concurrent creates cannot exceed it.
func (s *Store) CreatePlaylist(ctx context.Context, userID int64, name string, limit int) (models.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Playlist{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if limit > 0 {
		if err := lockUser(ctx, tx, userID); err != nil {
			return models.Playlist{}, err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM playlists
			WHERE user_id = $1
		`, userID).Scan(&count); err != nil {
			return models.Playlist{}, fmt.Errorf("count playlists: %w", err)
		}
		if count >= limit {
			return models.Playlist{}, ErrPlaylistLimitReached
		}
	}

	playlist := models.Playlist{UserID: userID, Name: name}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO playlists (user_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, userID, name).Scan(&playlist.ID, &playlist.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Playlist{}, ErrUserNotFound
		}
		return models.Playlist{}, fmt.Errorf("insert playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Playlist{}, fmt.Errorf("commit playlist create: %w", err)
	}
	tx = nil

	return playlist, nil
}

// ListPlaylistsByUser returns the user's playlists with their song counts.
func (s *Store) ListPlaylistsByUser(ctx context.Context, userID int64) ([]models.Playlist, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.name, p.created_at, COUNT(ps.song_id)
		FROM playlists p
		LEFT JOIN playlist_songs ps ON ps.playlist_id = p.id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.created_at ASC, p.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]models.Playlist, 0)
	for rows.Next() {
		var playlist models.Playlist
		if err := rows.Scan(&playlist.ID, &playlist.UserID, &playlist.Name, &playlist.CreatedAt, &playlist.SongCount); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	return playlists, nil
}

// GetPlaylist returns a single playlist by id.
func (s *Store) GetPlaylist(ctx context.Context, id int64) (models.Playlist, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var playlist models.Playlist
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.user_id, p.name, p.created_at,
		       (SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = p.id)
		FROM playlists p
		WHERE p.id = $1
	`, id).Scan(&playlist.ID, &playlist.UserID, &playlist.Name, &playlist.CreatedAt, &playlist.SongCount)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Playlist{}, ErrPlaylistNotFound
	}
	if err != nil {
		return models.Playlist{}, fmt.Errorf("get playlist: %w", err)
	}
	return playlist, nil
}

// DeletePlaylist removes a playlist and its song rows.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

// AddSongsToPlaylist appends the songs to the playlist in one statement.
// Duplicates are kept.
func (s *Store) AddSongsToPlaylist(ctx context.Context, playlistID int64, songIDs []int64) (int64, error) {
	if len(songIDs) == 0 {
		return 0, fmt.Errorf("%w: at least one song id is required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist_songs (playlist_id, song_id)
		SELECT $1, song_id
		FROM UNNEST($2::bigint[]) AS song_id
	`, playlistID, pq.Array(songIDs))
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrSongNotFound
		}
		return 0, fmt.Errorf("insert playlist songs: %w", err)
	}
	added, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return added, nil
}

// RemoveSongFromPlaylist deletes every occurrence of the song in the playlist.
func (s *Store) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM playlist_songs
		WHERE playlist_id = $1 AND song_id = $2
	`, playlistID, songID)
	if err != nil {
		return fmt.Errorf("delete playlist song: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPlaylistSongNotFound
	}
	return nil
}

// PlaylistSongs lists the songs of a playlist in insertion order.
func (s *Store) PlaylistSongs(ctx context.Context, playlistID int64) ([]Song, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		LEFT JOIN artists ar ON ar.id = s.artist_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE ps.playlist_id = $1
		ORDER BY ps.added_at ASC, s.id ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist songs: %w", err)
	}
	defer rows.Close()

	return scanSongRows(rows)
}
