package artists

import (
	"context"

	"melodia/internal/store"
)

// Store exposes the artist queries the service needs.
type Store interface {
	CreateArtist(ctx context.Context, artist store.Artist) (store.Artist, error)
	ListArtists(ctx context.Context) ([]store.Artist, error)
	GetArtist(ctx context.Context, id int64) (store.Artist, error)
	UpdateArtist(ctx context.Context, artist store.Artist) error
	DeleteArtist(ctx context.Context, id int64) error
	ListSongsByArtist(ctx context.Context, artistID int64) ([]store.Song, error)
}

// Profile is an artist together with every song credited to them.
type Profile struct {
	Artist store.Artist `json:"artist"`
	Songs  []store.Song `json:"songs"`
}

// Service provides artist-centric operations.
type Service interface {
	Create(ctx context.Context, artist store.Artist) (store.Artist, error)
	List(ctx context.Context) ([]store.Artist, error)
	Get(ctx context.Context, id int64) (store.Artist, error)
	Update(ctx context.Context, artist store.Artist) (store.Artist, error)
	Delete(ctx context.Context, id int64) error
	Profile(ctx context.Context, id int64) (Profile, error)
}

type service struct {
	store Store
}

// New constructs an artist Service.
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) Create(ctx context.Context, artist store.Artist) (store.Artist, error) {
	if err := ctx.Err(); err != nil {
		return store.Artist{}, err
	}
	return s.store.CreateArtist(ctx, artist)
}

func (s *service) List(ctx context.Context) ([]store.Artist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListArtists(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (store.Artist, error) {
	if err := ctx.Err(); err != nil {
		return store.Artist{}, err
	}
	return s.store.GetArtist(ctx, id)
}

func (s *service) Update(ctx context.Context, artist store.Artist) (store.Artist, error) {
	if err := ctx.Err(); err != nil {
		return store.Artist{}, err
	}
	if err := s.store.UpdateArtist(ctx, artist); err != nil {
		return store.Artist{}, err
	}
	return s.store.GetArtist(ctx, artist.ID)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.DeleteArtist(ctx, id)
}

func (s *service) Profile(ctx context.Context, id int64) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	artist, err := s.store.GetArtist(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	songs, err := s.store.ListSongsByArtist(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Artist: artist, Songs: songs}, nil
}
