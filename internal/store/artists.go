package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Artist is a performer in the catalog.
type Artist struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// CreateArtist inserts an artist and returns it with its id.
func (s *Store) CreateArtist(ctx context.Context, artist Artist) (Artist, error) {
	artist.Name = strings.TrimSpace(artist.Name)
	if artist.Name == "" {
		return Artist{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO artists (name, description)
		VALUES ($1, $2)
		RETURNING id
	`, artist.Name, descriptionValue(artist.Description)).Scan(&artist.ID); err != nil {
		return Artist{}, fmt.Errorf("insert artist: %w", err)
	}
	return artist, nil
}

// ListArtists returns every artist ordered by id.
func (s *Store) ListArtists(ctx context.Context) ([]Artist, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description
		FROM artists
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	artists := make([]Artist, 0)
	for rows.Next() {
		var (
			artist      Artist
			description sql.NullString
		)
		if err := rows.Scan(&artist.ID, &artist.Name, &description); err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}
		if description.Valid {
			artist.Description = &description.String
		}
		artists = append(artists, artist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artists: %w", err)
	}
	return artists, nil
}

// GetArtist returns a single artist by id.
func (s *Store) GetArtist(ctx context.Context, id int64) (Artist, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		artist      Artist
		description sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description
		FROM artists
		WHERE id = $1
	`, id).Scan(&artist.ID, &artist.Name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return Artist{}, ErrArtistNotFound
	}
	if err != nil {
		return Artist{}, fmt.Errorf("get artist: %w", err)
	}
	if description.Valid {
		artist.Description = &description.String
	}
	return artist, nil
}

// UpdateArtist replaces the name and description of an artist.
func (s *Store) UpdateArtist(ctx context.Context, artist Artist) error {
	artist.Name = strings.TrimSpace(artist.Name)
	if artist.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE artists
		SET name = $1, description = $2
		WHERE id = $3
	`, artist.Name, descriptionValue(artist.Description), artist.ID)
	if err != nil {
		return fmt.Errorf("update artist: %w", err)
	}
	return expectAffected(res, ErrArtistNotFound)
}

// DeleteArtist removes an artist with its albums and songs.
func (s *Store) DeleteArtist(ctx context.Context, id int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM artists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete artist: %w", err)
	}
	return expectAffected(res, ErrArtistNotFound)
}

func descriptionValue(description *string) any {
	if description == nil {
		return nil
	}
	return nullIfEmpty(strings.TrimSpace(*description))
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
