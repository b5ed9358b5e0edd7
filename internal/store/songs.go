package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultCoverPath is assigned to albums created implicitly for a new song.
const DefaultCoverPath = "default.jpg"

// Song represents a track in the catalog. FilePath is the media storage key.
type Song struct {
	ID         int64  `json:"id"`
	AlbumID    *int64 `json:"album_id"`
	ArtistID   int64  `json:"artist_id"`
	Title      string `json:"title"`
	FilePath   string `json:"file_path"`
	Duration   int    `json:"duration"`
	ArtistName string `json:"artist_name,omitempty"`
	AlbumTitle string `json:"album_title,omitempty"`
}

const songColumns = `s.id, s.album_id, s.artist_id, s.title, s.file_path, s.duration,
		       COALESCE(ar.name, ''), COALESCE(al.title, '')`

func validateSong(song Song) error {
	switch {
	case strings.TrimSpace(song.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case song.ArtistID <= 0:
		return fmt.Errorf("%w: artist_id is required", ErrInvalidInput)
	case strings.TrimSpace(song.FilePath) == "":
		return fmt.Errorf("%w: file_path is required", ErrInvalidInput)
	case song.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateSong inserts a song whose album, if any, already exists.
func (s *Store) CreateSong(ctx context.Context, song Song) (Song, error) {
	if err := validateSong(song); err != nil {
		return Song{}, err
	}
	song.Title = strings.TrimSpace(song.Title)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO songs (album_id, artist_id, title, file_path, duration)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, song.AlbumID, song.ArtistID, song.Title, song.FilePath, song.Duration).Scan(&song.ID)
	if err != nil {
		return Song{}, songInsertError(err)
	}
	return song, nil
}

// CreateSongWithAlbum inserts a song into the album with the given title,
// creating that album for the song's artist when none exists yet.
func (s *Store) CreateSongWithAlbum(ctx context.Context, song Song, albumTitle string) (Song, error) {
	albumTitle = strings.TrimSpace(albumTitle)
	if albumTitle == "" {
		return Song{}, fmt.Errorf("%w: album_title is required", ErrInvalidInput)
	}
	if err := validateSong(song); err != nil {
		return Song{}, err
	}
	song.Title = strings.TrimSpace(song.Title)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Song{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var albumID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM albums
		WHERE title = $1
		ORDER BY id ASC
		LIMIT 1
	`, albumTitle).Scan(&albumID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO albums (artist_id, title, cover_path)
			VALUES ($1, $2, $3)
			RETURNING id
		`, song.ArtistID, albumTitle, DefaultCoverPath).Scan(&albumID); err != nil {
			if isForeignKeyViolation(err) {
				return Song{}, ErrArtistNotFound
			}
			return Song{}, fmt.Errorf("insert album: %w", err)
		}
	case err != nil:
		return Song{}, fmt.Errorf("lookup album: %w", err)
	}

	song.AlbumID = &albumID
	song.AlbumTitle = albumTitle
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO songs (album_id, artist_id, title, file_path, duration)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, albumID, song.ArtistID, song.Title, song.FilePath, song.Duration).Scan(&song.ID); err != nil {
		return Song{}, songInsertError(err)
	}

	if err := tx.Commit(); err != nil {
		return Song{}, fmt.Errorf("commit tx: %w", err)
	}
	tx = nil

	return song, nil
}

// GetSong returns a single song by id.
func (s *Store) GetSong(ctx context.Context, id int64) (Song, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		LEFT JOIN artists ar ON ar.id = s.artist_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE s.id = $1
	`, id)

	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Song{}, ErrSongNotFound
	}
	if err != nil {
		return Song{}, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

// ListSongs returns the whole catalog ordered by id.
func (s *Store) ListSongs(ctx context.Context) ([]Song, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		LEFT JOIN artists ar ON ar.id = s.artist_id
		LEFT JOIN albums al ON al.id = s.album_id
		ORDER BY s.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	return scanSongRows(rows)
}

// ListSongsByArtist returns the songs credited to the artist.
func (s *Store) ListSongsByArtist(ctx context.Context, artistID int64) ([]Song, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		LEFT JOIN artists ar ON ar.id = s.artist_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE s.artist_id = $1
		ORDER BY s.id ASC
	`, artistID)
	if err != nil {
		return nil, fmt.Errorf("list artist songs: %w", err)
	}
	defer rows.Close()

	return scanSongRows(rows)
}

// SearchSongs matches the query as a case-insensitive substring of the song
// title, the artist name or the album title.
func (s *Store) SearchSongs(ctx context.Context, query string) ([]Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		LEFT JOIN artists ar ON ar.id = s.artist_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE s.title ILIKE $1 OR ar.name ILIKE $1 OR al.title ILIKE $1
		ORDER BY s.id ASC
		LIMIT 100
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("search songs: %w", err)
	}
	defer rows.Close()

	return scanSongRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (Song, error) {
	var (
		song    Song
		albumID sql.NullInt64
	)
	if err := row.Scan(&song.ID, &albumID, &song.ArtistID, &song.Title, &song.FilePath, &song.Duration,
		&song.ArtistName, &song.AlbumTitle); err != nil {
		return Song{}, err
	}
	if albumID.Valid {
		id := albumID.Int64
		song.AlbumID = &id
	}
	return song, nil
}

func scanSongRows(rows *sql.Rows) ([]Song, error) {
	songs := make([]Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return songs, nil
}

func songInsertError(err error) error {
	if isForeignKeyViolation(err) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "album") {
			return ErrAlbumNotFound
		}
		return ErrArtistNotFound
	}
	return fmt.Errorf("insert song: %w", err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
