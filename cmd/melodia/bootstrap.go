package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"melodia/internal/auth"
	"melodia/internal/store"
)

const (
	demoUsername = "demo"
	demoEmail    = "demo@melodia.local"
	demoPassword = "demo12345"
)

// demoCatalog is the single seeded track. The audio file itself is not
// shipped, so streaming it yields 404 until one is uploaded at FilePath.
var demoCatalog = struct {
	Artist      string
	Description string
	Album       string
	Song        string
	FilePath    string
	Duration    int
}{
	Artist:      "Massive Attack",
	Description: "Bristol trip hop collective.",
	Album:       "Mezzanine",
	Song:        "Teardrop",
	FilePath:    "demo-teardrop.mp3",
	Duration:    330,
}

// bootstrapStore is the subset of store.Store the seed needs.
type bootstrapStore interface {
	CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error)
	ListArtists(ctx context.Context) ([]store.Artist, error)
	CreateArtist(ctx context.Context, artist store.Artist) (store.Artist, error)
	ListSongsByArtist(ctx context.Context, artistID int64) ([]store.Song, error)
	CreateSongWithAlbum(ctx context.Context, song store.Song, albumTitle string) (store.Song, error)
}

func bootstrapDemoData(ctx context.Context, dataStore bootstrapStore) error {
	if err := ensureDemoUser(ctx, dataStore); err != nil {
		return err
	}
	if err := ensureDemoCatalog(ctx, dataStore); err != nil {
		return err
	}
	return nil
}

func ensureDemoUser(ctx context.Context, dataStore bootstrapStore) error {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	id, err := dataStore.CreateUser(ctx, demoUsername, demoEmail, hash)
	switch {
	case errors.Is(err, store.ErrUserExists):
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap demo user: %w", err)
	}
	log.Info().Int64("user_id", id).Str("email", demoEmail).Msg("seeded demo user")
	return nil
}

func ensureDemoCatalog(ctx context.Context, dataStore bootstrapStore) error {
	artists, err := dataStore.ListArtists(ctx)
	if err != nil {
		return fmt.Errorf("list artists: %w", err)
	}

	var artist store.Artist
	for _, a := range artists {
		if strings.EqualFold(a.Name, demoCatalog.Artist) {
			artist = a
			break
		}
	}
	if artist.ID == 0 {
		description := demoCatalog.Description
		artist, err = dataStore.CreateArtist(ctx, store.Artist{Name: demoCatalog.Artist, Description: &description})
		if err != nil {
			return fmt.Errorf("insert demo artist: %w", err)
		}
	}

	songs, err := dataStore.ListSongsByArtist(ctx, artist.ID)
	if err != nil {
		return fmt.Errorf("list demo songs: %w", err)
	}
	if len(songs) > 0 {
		return nil
	}

	song, err := dataStore.CreateSongWithAlbum(ctx, store.Song{
		ArtistID: artist.ID,
		Title:    demoCatalog.Song,
		FilePath: demoCatalog.FilePath,
		Duration: demoCatalog.Duration,
	}, demoCatalog.Album)
	if err != nil {
		return fmt.Errorf("insert demo song: %w", err)
	}
	log.Info().Int64("song_id", song.ID).Str("album", demoCatalog.Album).Msg("seeded demo catalog")
	return nil
}
