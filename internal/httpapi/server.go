package httpapi

import (
	"context"
	"net/http"

	"melodia/internal/app/artists"
	"melodia/internal/app/premium"
	"melodia/internal/app/songs"
	"melodia/internal/app/users"
	"melodia/internal/logging"
	"melodia/internal/media"
	"melodia/internal/models"
	"melodia/internal/store"
)

// Guard authenticates callers and applies the download gate.
type Guard interface {
	Authenticate(header string) (int64, error)
	RequirePremium(ctx context.Context, header string) (int64, error)
}

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (int64, error)
	Login(ctx context.Context, email, password string) (users.Session, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, callerID, userID int64) error
}

// PremiumService exposes entitlement workflows.
type PremiumService interface {
	Activate(ctx context.Context, userID int64) (models.Subscription, error)
	Status(ctx context.Context, userID int64) (premium.Status, error)
	History(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// PlaylistService coordinates playlist-related operations.
type PlaylistService interface {
	Create(ctx context.Context, userID int64, name string) (models.Playlist, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Playlist, error)
	Get(ctx context.Context, id int64) (models.Playlist, error)
	Delete(ctx context.Context, callerID, id int64) error
	AddSongs(ctx context.Context, callerID, playlistID int64, songIDs []int64) (int64, error)
	RemoveSong(ctx context.Context, callerID, playlistID, songID int64) error
	Songs(ctx context.Context, playlistID int64) ([]store.Song, error)
}

// ArtistService describes artist catalogue workflows.
type ArtistService interface {
	Create(ctx context.Context, artist store.Artist) (store.Artist, error)
	List(ctx context.Context) ([]store.Artist, error)
	Get(ctx context.Context, id int64) (store.Artist, error)
	Update(ctx context.Context, artist store.Artist) (store.Artist, error)
	Delete(ctx context.Context, id int64) error
	Profile(ctx context.Context, id int64) (artists.Profile, error)
}

// AlbumService exposes album-specific workflows.
type AlbumService interface {
	Create(ctx context.Context, album store.Album) (store.Album, error)
	List(ctx context.Context) ([]store.Album, error)
	ListByArtist(ctx context.Context, artistID int64) ([]store.Album, error)
	Get(ctx context.Context, id int64) (store.Album, error)
	Update(ctx context.Context, album store.Album) (store.Album, error)
	Delete(ctx context.Context, id int64) error
}

// SongService coordinates track-level operations.
type SongService interface {
	List(ctx context.Context) ([]store.Song, error)
	Get(ctx context.Context, id int64) (store.Song, error)
	Search(ctx context.Context, query string) ([]store.Song, error)
	Create(ctx context.Context, song songs.NewSong) (store.Song, error)
	Upload(ctx context.Context, upload songs.Upload) (store.Song, error)
	Open(ctx context.Context, id int64) (store.Song, *media.Object, error)
}

// Services groups the collaborators of a Server.
type Services struct {
	Guard     Guard
	Users     UserService
	Premium   PremiumService
	Playlists PlaylistService
	Artists   ArtistService
	Albums    AlbumService
	Songs     SongService
}

// Options tunes route behaviour.
type Options struct {
	// StatusOwnerOnly requires callers of the status lookup to be that user.
	StatusOwnerOnly bool
	// AuthLimiter wraps the login and registration handlers when set.
	AuthLimiter func(http.Handler) http.Handler
	// MaxUploadBytes caps multipart upload bodies. Zero uses 64 MiB.
	MaxUploadBytes int64
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	guard     Guard
	users     UserService
	premium   PremiumService
	playlists PlaylistService
	artists   ArtistService
	albums    AlbumService
	songs     SongService
	opts      Options
}

const defaultMaxUploadBytes = 64 << 20

// New configures a Server.
func New(services Services, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		guard:     services.Guard,
		users:     services.Users,
		premium:   services.Premium,
		playlists: services.Playlists,
		artists:   services.Artists,
		albums:    services.Albums,
		songs:     services.Songs,
		opts:      opts,
	}
}

// Routes exposes the HTTP handlers for accounts, entitlement and the catalog.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	})

	// Accounts
	mux.Handle("POST /register", s.limitAuth(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /login", s.limitAuth(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /users", s.authenticated(s.handleListUsers))
	mux.HandleFunc("DELETE /users/{id}", s.authenticated(s.handleDeleteUser))

	// Premium
	mux.HandleFunc("POST /premium/activate", s.authenticated(s.handleActivatePremium))
	mux.HandleFunc("GET /premium/status/{user_id}", s.handlePremiumStatus)
	mux.HandleFunc("GET /premium/history", s.authenticated(s.handlePremiumHistory))

	// Playlists
	mux.HandleFunc("POST /playlists", s.authenticated(s.handleCreatePlaylist))
	mux.HandleFunc("GET /playlists", s.authenticated(s.handleListOwnPlaylists))
	mux.HandleFunc("GET /users/{id}/playlists", s.handleListUserPlaylists)
	mux.HandleFunc("GET /playlists/{id}", s.handleGetPlaylist)
	mux.HandleFunc("DELETE /playlists/{id}", s.authenticated(s.handleDeletePlaylist))
	mux.HandleFunc("POST /playlists/{id}/songs", s.authenticated(s.handleAddPlaylistSong))
	mux.HandleFunc("GET /playlists/{id}/songs", s.handleListPlaylistSongs)
	mux.HandleFunc("DELETE /playlists/{id}/songs/{song_id}", s.authenticated(s.handleRemovePlaylistSong))

	// Artists
	mux.HandleFunc("GET /artists", s.handleListArtists)
	mux.HandleFunc("POST /artists", s.handleCreateArtist)
	mux.HandleFunc("GET /artists/{id}", s.handleGetArtist)
	mux.HandleFunc("PUT /artists/{id}", s.handleUpdateArtist)
	mux.HandleFunc("DELETE /artists/{id}", s.handleDeleteArtist)
	mux.HandleFunc("GET /artists/{id}/full", s.handleArtistProfile)

	// Albums
	mux.HandleFunc("GET /albums", s.handleListAlbums)
	mux.HandleFunc("POST /albums", s.handleCreateAlbum)
	mux.HandleFunc("GET /albums/{id}", s.handleGetAlbum)
	mux.HandleFunc("GET /albums/artist/{artist_id}", s.handleListArtistAlbums)
	mux.HandleFunc("PUT /albums/{id}", s.handleUpdateAlbum)
	mux.HandleFunc("DELETE /albums/{id}", s.handleDeleteAlbum)

	// Songs
	mux.HandleFunc("GET /songs", s.handleListSongs)
	mux.HandleFunc("POST /songs", s.handleCreateSong)
	mux.HandleFunc("POST /songs/upload", s.handleUploadSong)
	mux.HandleFunc("GET /songs/search", s.handleSearchSongs)
	mux.HandleFunc("GET /songs/{id}", s.handleGetSong)
	mux.HandleFunc("GET /songs/stream/{id}", s.handleStreamSong)
	mux.HandleFunc("GET /songs/download/{id}", s.premiumOnly(s.handleDownloadSong))

	return mux
}

// userHandler is a handler that runs after the caller has been identified.
type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (s *Server) authenticated(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.guard.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		r = r.WithContext(logging.WithUserID(r.Context(), userID))
		next(w, r, userID)
	}
}

func (s *Server) premiumOnly(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.guard.RequirePremium(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		r = r.WithContext(logging.WithUserID(r.Context(), userID))
		next(w, r, userID)
	}
}

func (s *Server) limitAuth(h http.Handler) http.Handler {
	if s.opts.AuthLimiter == nil {
		return h
	}
	return s.opts.AuthLimiter(h)
}
