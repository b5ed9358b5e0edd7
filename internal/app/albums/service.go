package albums

import (
	"context"

	"melodia/internal/store"
)

// Store exposes the album persistence operations.
type Store interface {
	CreateAlbum(ctx context.Context, album store.Album) (store.Album, error)
	ListAlbums(ctx context.Context) ([]store.Album, error)
	ListAlbumsByArtist(ctx context.Context, artistID int64) ([]store.Album, error)
	GetAlbum(ctx context.Context, id int64) (store.Album, error)
	UpdateAlbum(ctx context.Context, album store.Album) error
	DeleteAlbum(ctx context.Context, id int64) error
}

// Service provides album operations.
type Service interface {
	Create(ctx context.Context, album store.Album) (store.Album, error)
	List(ctx context.Context) ([]store.Album, error)
	ListByArtist(ctx context.Context, artistID int64) ([]store.Album, error)
	Get(ctx context.Context, id int64) (store.Album, error)
	Update(ctx context.Context, album store.Album) (store.Album, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	store Store
}

// New constructs an album Service backed by the provided Store.
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) Create(ctx context.Context, album store.Album) (store.Album, error) {
	if err := ctx.Err(); err != nil {
		return store.Album{}, err
	}
	return s.store.CreateAlbum(ctx, album)
}

func (s *service) List(ctx context.Context) ([]store.Album, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListAlbums(ctx)
}

func (s *service) ListByArtist(ctx context.Context, artistID int64) ([]store.Album, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListAlbumsByArtist(ctx, artistID)
}

func (s *service) Get(ctx context.Context, id int64) (store.Album, error) {
	if err := ctx.Err(); err != nil {
		return store.Album{}, err
	}
	return s.store.GetAlbum(ctx, id)
}

func (s *service) Update(ctx context.Context, album store.Album) (store.Album, error) {
	if err := ctx.Err(); err != nil {
		return store.Album{}, err
	}
	if err := s.store.UpdateAlbum(ctx, album); err != nil {
		return store.Album{}, err
	}
	return s.store.GetAlbum(ctx, album.ID)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.DeleteAlbum(ctx, id)
}
