package main

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"melodia/internal/access"
	"melodia/internal/app/albums"
	"melodia/internal/app/artists"
	"melodia/internal/app/playlists"
	"melodia/internal/app/premium"
	"melodia/internal/app/songs"
	"melodia/internal/app/users"
	"melodia/internal/auth"
	"melodia/internal/config"
	"melodia/internal/http/middleware"
	"melodia/internal/httpapi"
	"melodia/internal/media"
	"melodia/internal/store"
)

func newHTTPHandler(cfg *config.Config, dataStore *store.Store) (http.Handler, error) {
	storage, err := newMediaStorage(cfg.Media)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	premiumSvc := premium.New(dataStore, premium.WithDuration(cfg.Premium.Duration))
	guard := access.NewGuard(tokens, premiumSvc, access.WithFreePlaylistLimit(cfg.Premium.FreePlaylistLimit))

	api := httpapi.New(httpapi.Services{
		Guard:     guard,
		Users:     users.New(dataStore, tokens),
		Premium:   premiumSvc,
		Playlists: playlists.New(dataStore, guard),
		Artists:   artists.New(dataStore),
		Albums:    albums.New(dataStore),
		Songs:     songs.New(dataStore, storage),
	}, httpapi.Options{
		StatusOwnerOnly: cfg.Premium.StatusOwnerOnly,
		AuthLimiter:     middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst).Limit,
	})

	return middleware.Chain(api.Routes(),
		middleware.RequestLogging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	), nil
}

func newMediaStorage(cfg config.MediaConfig) (media.Storage, error) {
	switch cfg.Backend {
	case "s3":
		storage, err := media.NewS3(cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("configure s3 media: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("serving media from s3")
		return storage, nil
	default:
		storage, err := media.NewDisk(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("configure disk media: %w", err)
		}
		log.Info().Str("dir", cfg.Dir).Msg("serving media from disk")
		return storage, nil
	}
}
