package playlists

import (
	"context"
	"errors"

	"melodia/internal/access"
	"melodia/internal/models"
	"melodia/internal/store"
)

// Store captures the persistence needs for playlist workflows.
type Store interface {
	CreatePlaylist(ctx context.Context, userID int64, name string, limit int) (models.Playlist, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	ListPlaylistsByUser(ctx context.Context, userID int64) ([]models.Playlist, error)
	GetPlaylist(ctx context.Context, id int64) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, id int64) error
	AddSongsToPlaylist(ctx context.Context, playlistID int64, songIDs []int64) (int64, error)
	RemoveSongFromPlaylist(ctx context.Context, playlistID, songID int64) error
	PlaylistSongs(ctx context.Context, playlistID int64) ([]store.Song, error)
}

// Quota resolves how many playlists a user may own; zero means unlimited.
type Quota interface {
	PlaylistLimit(ctx context.Context, userID int64) (int, error)
}

// Service coordinates playlist-related operations.
type Service interface {
	Create(ctx context.Context, userID int64, name string) (models.Playlist, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Playlist, error)
	Get(ctx context.Context, id int64) (models.Playlist, error)
	Delete(ctx context.Context, callerID, id int64) error
	AddSongs(ctx context.Context, callerID, playlistID int64, songIDs []int64) (int64, error)
	RemoveSong(ctx context.Context, callerID, playlistID, songID int64) error
	Songs(ctx context.Context, playlistID int64) ([]store.Song, error)
}

type service struct {
	store Store
	quota Quota
}

// New constructs a Service backed by the provided Store.
func New(store Store, quota Quota) Service {
	return &service{store: store, quota: quota}
}

// Create enforces the caller's playlist quota. The count and the insert happen
// in one store transaction.
func (s *service) Create(ctx context.Context, userID int64, name string) (models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return models.Playlist{}, err
	}

	limit, err := s.quota.PlaylistLimit(ctx, userID)
	if err != nil {
		return models.Playlist{}, err
	}

	playlist, err := s.store.CreatePlaylist(ctx, userID, name, limit)
	if errors.Is(err, store.ErrPlaylistLimitReached) {
		return models.Playlist{}, access.ErrQuotaExceeded
	}
	return playlist, err
}

// ListByUser reports ErrUserNotFound rather than an empty list for unknown users.
func (s *service) ListByUser(ctx context.Context, userID int64) ([]models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListPlaylistsByUser(ctx, userID)
}

func (s *service) Get(ctx context.Context, id int64) (models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return models.Playlist{}, err
	}
	return s.store.GetPlaylist(ctx, id)
}

func (s *service) Delete(ctx context.Context, callerID, id int64) error {
	if err := s.authorize(ctx, callerID, id); err != nil {
		return err
	}
	return s.store.DeletePlaylist(ctx, id)
}

func (s *service) AddSongs(ctx context.Context, callerID, playlistID int64, songIDs []int64) (int64, error) {
	if err := s.authorize(ctx, callerID, playlistID); err != nil {
		return 0, err
	}
	return s.store.AddSongsToPlaylist(ctx, playlistID, songIDs)
}

func (s *service) RemoveSong(ctx context.Context, callerID, playlistID, songID int64) error {
	if err := s.authorize(ctx, callerID, playlistID); err != nil {
		return err
	}
	return s.store.RemoveSongFromPlaylist(ctx, playlistID, songID)
}

func (s *service) Songs(ctx context.Context, playlistID int64) ([]store.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPlaylist(ctx, playlistID); err != nil {
		return nil, err
	}
	return s.store.PlaylistSongs(ctx, playlistID)
}

func (s *service) authorize(ctx context.Context, callerID, playlistID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	playlist, err := s.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}
	return access.RequireOwner(callerID, playlist.UserID)
}
