package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Album groups songs of one artist.
type Album struct {
	ID        int64  `json:"id"`
	ArtistID  int64  `json:"artist_id"`
	Title     string `json:"title"`
	CoverPath string `json:"cover_path"`
}

func validateAlbum(album Album) error {
	switch {
	case album.ArtistID <= 0:
		return fmt.Errorf("%w: artist_id is required", ErrInvalidInput)
	case strings.TrimSpace(album.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(album.CoverPath) == "":
		return fmt.Errorf("%w: cover_path is required", ErrInvalidInput)
	}
	return nil
}

// CreateAlbum inserts an album for an existing artist.
func (s *Store) CreateAlbum(ctx context.Context, album Album) (Album, error) {
	if err := validateAlbum(album); err != nil {
		return Album{}, err
	}
	album.Title = strings.TrimSpace(album.Title)
	album.CoverPath = strings.TrimSpace(album.CoverPath)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO albums (artist_id, title, cover_path)
		VALUES ($1, $2, $3)
		RETURNING id
	`, album.ArtistID, album.Title, album.CoverPath).Scan(&album.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Album{}, ErrArtistNotFound
		}
		return Album{}, fmt.Errorf("insert album: %w", err)
	}
	return album, nil
}

// ListAlbums returns every album ordered by id.
func (s *Store) ListAlbums(ctx context.Context) ([]Album, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artist_id, title, cover_path
		FROM albums
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("select albums: %w", err)
	}
	defer rows.Close()

	return scanAlbumRows(rows)
}

// ListAlbumsByArtist returns the albums of one artist.
func (s *Store) ListAlbumsByArtist(ctx context.Context, artistID int64) ([]Album, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artist_id, title, cover_path
		FROM albums
		WHERE artist_id = $1
		ORDER BY id ASC
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("select artist albums: %w", err)
	}
	defer rows.Close()

	return scanAlbumRows(rows)
}

// GetAlbum returns a single album by id.
func (s *Store) GetAlbum(ctx context.Context, id int64) (Album, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var album Album
	err := s.db.QueryRowContext(ctx, `
		SELECT id, artist_id, title, cover_path
		FROM albums
		WHERE id = $1
	`, id).Scan(&album.ID, &album.ArtistID, &album.Title, &album.CoverPath)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, ErrAlbumNotFound
	}
	if err != nil {
		return Album{}, fmt.Errorf("get album: %w", err)
	}
	return album, nil
}

// UpdateAlbum replaces every field of an album.
func (s *Store) UpdateAlbum(ctx context.Context, album Album) error {
	if err := validateAlbum(album); err != nil {
		return err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE albums
		SET artist_id = $1, title = $2, cover_path = $3
		WHERE id = $4
	`, album.ArtistID, strings.TrimSpace(album.Title), strings.TrimSpace(album.CoverPath), album.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrArtistNotFound
		}
		return fmt.Errorf("update album: %w", err)
	}
	return expectAffected(res, ErrAlbumNotFound)
}

// DeleteAlbum removes an album. Its songs keep existing without an album.
func (s *Store) DeleteAlbum(ctx context.Context, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	return expectAffected(res, ErrAlbumNotFound)
}

func scanAlbumRows(rows *sql.Rows) ([]Album, error) {
	albums := make([]Album, 0)
	for rows.Next() {
		var album Album
		if err := rows.Scan(&album.ID, &album.ArtistID, &album.Title, &album.CoverPath); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return albums, nil
}
