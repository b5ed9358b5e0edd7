package songs

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"melodia/internal/media"
	"melodia/internal/store"
)

// Store exposes the song persistence operations.
type Store interface {
	CreateSong(ctx context.Context, song store.Song) (store.Song, error)
	CreateSongWithAlbum(ctx context.Context, song store.Song, albumTitle string) (store.Song, error)
	GetSong(ctx context.Context, id int64) (store.Song, error)
	ListSongs(ctx context.Context) ([]store.Song, error)
	SearchSongs(ctx context.Context, query string) ([]store.Song, error)
}

// NewSong describes a catalog entry whose file is already in media storage.
// The album is looked up by title and created when missing.
type NewSong struct {
	Title      string `json:"title"`
	ArtistID   int64  `json:"artist_id"`
	AlbumTitle string `json:"album_title"`
	FilePath   string `json:"file_path"`
	Duration   int    `json:"duration"`
}

// Upload carries an audio file together with its catalog fields.
type Upload struct {
	Title    string
	ArtistID int64
	AlbumID  *int64
	Duration int
	Filename string
	Body     io.ReadSeeker
}

// Service exposes song-centric operations.
type Service interface {
	List(ctx context.Context) ([]store.Song, error)
	Get(ctx context.Context, id int64) (store.Song, error)
	Search(ctx context.Context, query string) ([]store.Song, error)
	Create(ctx context.Context, song NewSong) (store.Song, error)
	Upload(ctx context.Context, upload Upload) (store.Song, error)
	Open(ctx context.Context, id int64) (store.Song, *media.Object, error)
}

type service struct {
	store Store
	media media.Storage
}

// New constructs a song Service over the catalog store and media storage.
func New(store Store, storage media.Storage) Service {
	return &service{store: store, media: storage}
}

func (s *service) List(ctx context.Context) ([]store.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListSongs(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (store.Song, error) {
	if err := ctx.Err(); err != nil {
		return store.Song{}, err
	}
	return s.store.GetSong(ctx, id)
}

func (s *service) Search(ctx context.Context, query string) ([]store.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.SearchSongs(ctx, query)
}

func (s *service) Create(ctx context.Context, song NewSong) (store.Song, error) {
	if err := ctx.Err(); err != nil {
		return store.Song{}, err
	}

	entry := store.Song{
		Title:    song.Title,
		ArtistID: song.ArtistID,
		FilePath: strings.TrimSpace(song.FilePath),
		Duration: song.Duration,
	}
	if strings.TrimSpace(song.AlbumTitle) == "" {
		return s.store.CreateSong(ctx, entry)
	}
	return s.store.CreateSongWithAlbum(ctx, entry, song.AlbumTitle)
}

// Upload stores the file under a fresh random key, then records the song.
// The stored file is removed again when the catalog insert fails.
func (s *service) Upload(ctx context.Context, upload Upload) (store.Song, error) {
	if err := ctx.Err(); err != nil {
		return store.Song{}, err
	}
	if upload.Body == nil {
		return store.Song{}, fmt.Errorf("%w: song file is required", store.ErrInvalidInput)
	}
	if strings.TrimSpace(upload.Title) == "" || upload.ArtistID <= 0 {
		return store.Song{}, fmt.Errorf("%w: title and artist_id are required", store.ErrInvalidInput)
	}

	key := uuid.NewString() + fileExtension(upload.Filename)
	if err := s.media.Save(ctx, key, upload.Body); err != nil {
		return store.Song{}, fmt.Errorf("save upload: %w", err)
	}

	song, err := s.store.CreateSong(ctx, store.Song{
		AlbumID:  upload.AlbumID,
		ArtistID: upload.ArtistID,
		Title:    upload.Title,
		FilePath: key,
		Duration: upload.Duration,
	})
	if err != nil {
		if delErr := s.media.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("remove orphaned upload")
		}
		return store.Song{}, err
	}
	return song, nil
}

// Open resolves the song and opens its media object. Callers close the body.
func (s *service) Open(ctx context.Context, id int64) (store.Song, *media.Object, error) {
	if err := ctx.Err(); err != nil {
		return store.Song{}, nil, err
	}

	song, err := s.store.GetSong(ctx, id)
	if err != nil {
		return store.Song{}, nil, err
	}
	obj, err := s.media.Open(ctx, song.FilePath)
	if err != nil {
		return store.Song{}, nil, err
	}
	return song, obj, nil
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

func fileExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
