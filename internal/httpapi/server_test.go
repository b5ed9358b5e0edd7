package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"melodia/internal/access"
	"melodia/internal/app/artists"
	"melodia/internal/app/premium"
	"melodia/internal/app/songs"
	"melodia/internal/app/users"
	"melodia/internal/auth"
	"melodia/internal/media"
	"melodia/internal/models"
	"melodia/internal/store"
)

// Tokens "free-token" and "premium-token" resolve to users 1 and 2.
type stubTokens struct{}

func (stubTokens) Verify(token string) (int64, error) {
	switch token {
	case "free-token":
		return 1, nil
	case "premium-token":
		return 2, nil
	}
	return 0, errors.New("invalid token")
}

type stubEntitlements struct {
	err error
}

func (s stubEntitlements) IsPremium(ctx context.Context, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return userID == 2, nil
}

type stubUserService struct {
	registerErr error
	deleted     []int64
}

func (s *stubUserService) Register(ctx context.Context, username, email, password string) (int64, error) {
	if s.registerErr != nil {
		return 0, s.registerErr
	}
	return 9, nil
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (users.Session, error) {
	if password != "demo12345" {
		return users.Session{}, auth.ErrInvalidCredentials
	}
	return users.Session{Token: "free-token", User: models.User{ID: 1, Username: "demo", Email: email}}, nil
}

func (s *stubUserService) List(ctx context.Context) ([]models.User, error) {
	return []models.User{{ID: 1, Username: "demo"}}, nil
}

func (s *stubUserService) Delete(ctx context.Context, callerID, userID int64) error {
	if err := access.RequireOwner(callerID, userID); err != nil {
		return err
	}
	s.deleted = append(s.deleted, userID)
	return nil
}

type stubPremiumService struct {
	activatedFor []int64
	statusErr    error
	now          time.Time
}

func (s *stubPremiumService) Activate(ctx context.Context, userID int64) (models.Subscription, error) {
	s.activatedFor = append(s.activatedFor, userID)
	end := s.now.Add(premium.DefaultDuration)
	return models.Subscription{ID: 1, UserID: userID, Plan: models.PlanPremium, StartDate: s.now, EndDate: &end}, nil
}

func (s *stubPremiumService) Status(ctx context.Context, userID int64) (premium.Status, error) {
	if s.statusErr != nil {
		return premium.Status{}, s.statusErr
	}
	if userID == 3 {
		start := s.now.Add(-premium.DefaultDuration)
		end := s.now
		return premium.Status{Premium: false, StartDate: &start, EndDate: &end}, nil
	}
	if userID != 2 {
		return premium.Status{Premium: false}, nil
	}
	start := s.now
	end := s.now.Add(premium.DefaultDuration)
	return premium.Status{Premium: true, StartDate: &start, EndDate: &end}, nil
}

func (s *stubPremiumService) History(ctx context.Context, userID int64) ([]models.Subscription, error) {
	return nil, nil
}

type stubPlaylistService struct {
	createErr error
	owner     int64
	created   []string
}

func (s *stubPlaylistService) Create(ctx context.Context, userID int64, name string) (models.Playlist, error) {
	if s.createErr != nil {
		return models.Playlist{}, s.createErr
	}
	s.created = append(s.created, name)
	return models.Playlist{ID: 11, UserID: userID, Name: name}, nil
}

func (s *stubPlaylistService) ListByUser(ctx context.Context, userID int64) ([]models.Playlist, error) {
	if userID > 3 {
		return nil, store.ErrUserNotFound
	}
	return []models.Playlist{{ID: 11, UserID: userID, Name: "mix"}}, nil
}

func (s *stubPlaylistService) Get(ctx context.Context, id int64) (models.Playlist, error) {
	if id != 11 {
		return models.Playlist{}, store.ErrPlaylistNotFound
	}
	return models.Playlist{ID: 11, UserID: s.owner, Name: "mix", SongCount: 2}, nil
}

func (s *stubPlaylistService) Delete(ctx context.Context, callerID, id int64) error {
	return access.RequireOwner(callerID, s.owner)
}

func (s *stubPlaylistService) AddSongs(ctx context.Context, callerID, playlistID int64, songIDs []int64) (int64, error) {
	if err := access.RequireOwner(callerID, s.owner); err != nil {
		return 0, err
	}
	return int64(len(songIDs)), nil
}

func (s *stubPlaylistService) RemoveSong(ctx context.Context, callerID, playlistID, songID int64) error {
	return access.RequireOwner(callerID, s.owner)
}

func (s *stubPlaylistService) Songs(ctx context.Context, playlistID int64) ([]store.Song, error) {
	return []store.Song{}, nil
}

type stubArtistService struct{}

func (stubArtistService) Create(ctx context.Context, artist store.Artist) (store.Artist, error) {
	artist.ID = 3
	return artist, nil
}

func (stubArtistService) List(ctx context.Context) ([]store.Artist, error) { return nil, nil }

func (stubArtistService) Get(ctx context.Context, id int64) (store.Artist, error) {
	return store.Artist{}, store.ErrArtistNotFound
}

func (stubArtistService) Update(ctx context.Context, artist store.Artist) (store.Artist, error) {
	return artist, nil
}

func (stubArtistService) Delete(ctx context.Context, id int64) error { return nil }

func (stubArtistService) Profile(ctx context.Context, id int64) (artists.Profile, error) {
	return artists.Profile{}, nil
}

type stubAlbumService struct{}

func (stubAlbumService) Create(ctx context.Context, album store.Album) (store.Album, error) {
	return store.Album{}, store.ErrArtistNotFound
}

func (stubAlbumService) List(ctx context.Context) ([]store.Album, error) { return nil, nil }

func (stubAlbumService) ListByArtist(ctx context.Context, artistID int64) ([]store.Album, error) {
	return nil, nil
}

func (stubAlbumService) Get(ctx context.Context, id int64) (store.Album, error) { return store.Album{}, nil }

func (stubAlbumService) Update(ctx context.Context, album store.Album) (store.Album, error) {
	return album, nil
}

func (stubAlbumService) Delete(ctx context.Context, id int64) error { return nil }

type stubSongService struct {
	uploaded songs.Upload
	body     string
}

func (s *stubSongService) List(ctx context.Context) ([]store.Song, error) { return nil, nil }

func (s *stubSongService) Get(ctx context.Context, id int64) (store.Song, error) {
	return store.Song{ID: id, Title: "Teardrop"}, nil
}

func (s *stubSongService) Search(ctx context.Context, query string) ([]store.Song, error) {
	return []store.Song{{ID: 1, Title: query}}, nil
}

func (s *stubSongService) Create(ctx context.Context, song songs.NewSong) (store.Song, error) {
	return store.Song{ID: 4, Title: song.Title}, nil
}

func (s *stubSongService) Upload(ctx context.Context, upload songs.Upload) (store.Song, error) {
	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return store.Song{}, err
	}
	s.uploaded = upload
	s.body = string(data)
	return store.Song{ID: 5, Title: upload.Title, ArtistID: upload.ArtistID, FilePath: "k.mp3"}, nil
}

func (s *stubSongService) Open(ctx context.Context, id int64) (store.Song, *media.Object, error) {
	if id != 1 {
		return store.Song{}, nil, store.ErrSongNotFound
	}
	return store.Song{ID: 1, Title: "Teardrop", FilePath: "abc.mp3"},
		&media.Object{Body: io.NopCloser(strings.NewReader("audio")), Size: 5, ContentType: "audio/mpeg"}, nil
}

type fixture struct {
	users     *stubUserService
	premium   *stubPremiumService
	playlists *stubPlaylistService
	songs     *stubSongService
	handler   http.Handler
}

func newFixture(t *testing.T, ents stubEntitlements, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		users:     &stubUserService{},
		premium:   &stubPremiumService{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
		playlists: &stubPlaylistService{owner: 1},
		songs:     &stubSongService{},
	}
	srv := New(Services{
		Guard:     access.NewGuard(stubTokens{}, ents),
		Users:     f.users,
		Premium:   f.premium,
		Playlists: f.playlists,
		Artists:   stubArtistService{},
		Albums:    stubAlbumService{},
		Songs:     f.songs,
	}, opts)
	f.handler = srv.Routes()
	return f
}

func (f *fixture) do(method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if body.Message == "" {
		t.Fatalf("response without message: %q", rec.Body.String())
	}
	return body.Message
}

func TestCreatePlaylist(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		body      string
		createErr error
		want      int
	}{
		{name: "no credential", body: `{"name":"mix"}`, want: http.StatusUnauthorized},
		{name: "forged credential", token: "forged", body: `{"name":"mix"}`, want: http.StatusUnauthorized},
		{name: "created", token: "free-token", body: `{"name":"mix"}`, want: http.StatusCreated},
		{name: "quota reached", token: "free-token", body: `{"name":"mix"}`, createErr: access.ErrQuotaExceeded, want: http.StatusForbidden},
		{name: "missing name", token: "free-token", body: `{}`, createErr: store.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "bad json", token: "free-token", body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubEntitlements{}, Options{})
			f.playlists.createErr = tt.createErr

			rec := f.do(http.MethodPost, "/playlists", tt.token, strings.NewReader(tt.body))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			decodeMessage(t, rec)

			if tt.want == http.StatusCreated {
				var body createdResponse
				_ = json.Unmarshal(rec.Body.Bytes(), &body)
				if body.ID != 11 {
					t.Fatalf("id = %d, want 11", body.ID)
				}
			} else if len(f.playlists.created) != 0 {
				t.Fatal("playlist created despite refusal")
			}
		})
	}
}

func TestDownloadGate(t *testing.T) {
	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{name: "no credential", path: "/songs/download/1", want: http.StatusUnauthorized},
		{name: "free user", token: "free-token", path: "/songs/download/1", want: http.StatusForbidden},
		{name: "premium user", token: "premium-token", path: "/songs/download/1", want: http.StatusOK},
		{name: "premium unknown song", token: "premium-token", path: "/songs/download/9", want: http.StatusNotFound},
		{name: "premium bad id", token: "premium-token", path: "/songs/download/abc", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubEntitlements{}, Options{})
			rec := f.do(http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				decodeMessage(t, rec)
				return
			}
			if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=Teardrop.mp3` {
				t.Fatalf("Content-Disposition = %q", got)
			}
			if rec.Body.String() != "audio" {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestDownloadStoreFailure(t *testing.T) {
	f := newFixture(t, stubEntitlements{err: errors.New("pq: connection refused")}, Options{})

	rec := f.do(http.MethodGet, "/songs/download/1", "premium-token", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := decodeMessage(t, rec); strings.Contains(msg, "pq") {
		t.Fatalf("message leaks internals: %q", msg)
	}
}

func TestStreamNeedsNoEntitlement(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	rec := f.do(http.MethodGet, "/songs/stream/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Fatal("stream should not be an attachment")
	}
}

func TestActivateUsesCallerIdentity(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	rec := f.do(http.MethodPost, "/premium/activate", "free-token", strings.NewReader(`{"user_id": 2}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.premium.activatedFor) != 1 || f.premium.activatedFor[0] != 1 {
		t.Fatalf("activated for %v, want [1]", f.premium.activatedFor)
	}

	var body activateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message == "" || body.End == nil || body.End.Sub(body.Start) != premium.DefaultDuration {
		t.Fatalf("body = %+v", body)
	}

	if rec := f.do(http.MethodPost, "/premium/activate", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous activate status = %d, want 401", rec.Code)
	}
}

func TestPremiumStatus(t *testing.T) {
	t.Run("public lookup", func(t *testing.T) {
		tests := []struct {
			name        string
			target      string
			wantPremium bool
		}{
			{name: "premium user", target: "/premium/status/2", wantPremium: true},
			{name: "never subscribed", target: "/premium/status/1"},
			{name: "window ended exactly now", target: "/premium/status/3"},
			{name: "unknown user", target: "/premium/status/777"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t, stubEntitlements{}, Options{})

				rec := f.do(http.MethodGet, tt.target, "", nil)
				if rec.Code != http.StatusOK {
					t.Fatalf("status = %d", rec.Code)
				}
				var body map[string]any
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode body %q: %v", rec.Body.String(), err)
				}
				if body["premium"] != tt.wantPremium {
					t.Fatalf("premium = %v, want %v", body["premium"], tt.wantPremium)
				}
				if msg, _ := body["message"].(string); msg == "" {
					t.Fatalf("body without message: %s", rec.Body.String())
				}
				for _, key := range []string{"start_date", "end_date"} {
					if _, ok := body[key]; ok != tt.wantPremium {
						t.Fatalf("%s present = %t, want %t: %s", key, ok, tt.wantPremium, rec.Body.String())
					}
				}
			})
		}
	})

	t.Run("owner only", func(t *testing.T) {
		f := newFixture(t, stubEntitlements{}, Options{StatusOwnerOnly: true})

		if rec := f.do(http.MethodGet, "/premium/status/2", "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous status = %d, want 401", rec.Code)
		}
		if rec := f.do(http.MethodGet, "/premium/status/2", "free-token", nil); rec.Code != http.StatusForbidden {
			t.Fatalf("other user status = %d, want 403", rec.Code)
		}
		if rec := f.do(http.MethodGet, "/premium/status/2", "premium-token", nil); rec.Code != http.StatusOK {
			t.Fatalf("owner status = %d, want 200", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, stubEntitlements{}, Options{})
		f.premium.statusErr = context.DeadlineExceeded

		rec := f.do(http.MethodGet, "/premium/status/2", "", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "internal server error" {
			t.Fatalf("message = %q", msg)
		}
	})
}

func TestPlaylistOwnership(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	if rec := f.do(http.MethodDelete, "/playlists/11/songs/4", "premium-token", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner remove status = %d, want 403", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/playlists/11/songs/4", "free-token", nil); rec.Code != http.StatusOK {
		t.Fatalf("owner remove status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/playlists/11/songs", "free-token", strings.NewReader(`{}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("add without song status = %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/playlists/11/songs", "free-token", strings.NewReader(`{"song_id": 4}`)); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/playlists/11", "premium-token", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete status = %d, want 403", rec.Code)
	}
}

func TestPlaylistLookup(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	rec := f.do(http.MethodGet, "/playlists/11", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var playlist models.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &playlist); err != nil {
		t.Fatalf("decode playlist: %v", err)
	}
	if playlist.ID != 11 || playlist.UserID != 1 || playlist.SongCount != 2 {
		t.Fatalf("playlist = %+v", playlist)
	}

	if rec := f.do(http.MethodGet, "/playlists/99", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing playlist status = %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/users/1/playlists", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("user playlists status = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/users/77/playlists", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user playlists status = %d, want 404", rec.Code)
	}
}

func TestAccountRoutes(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	f.users.registerErr = store.ErrUserExists
	rec := f.do(http.MethodPost, "/register", "", strings.NewReader(`{"username":"demo","email":"demo@melodia.local","password":"demo12345"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}

	rec = f.do(http.MethodPost, "/login", "", strings.NewReader(`{"email":"demo@melodia.local","password":"demo12345"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login loginResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &login)
	if login.Token != "free-token" || login.User.ID != 1 {
		t.Fatalf("login = %+v", login)
	}

	if rec := f.do(http.MethodGet, "/users", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous user list = %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/users/2", "free-token", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("delete other user = %d, want 403", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/users/1", "free-token", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete self = %d, want 200", rec.Code)
	}
}

func TestAuthLimiterWrapsCredentialRoutes(t *testing.T) {
	limited := 0
	f := newFixture(t, stubEntitlements{}, Options{
		AuthLimiter: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				limited++
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})

	if rec := f.do(http.MethodPost, "/login", "", strings.NewReader(`{}`)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("login status = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/songs", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("songs status = %d", rec.Code)
	}
	if limited != 1 {
		t.Fatalf("limiter calls = %d, want 1", limited)
	}
}

func TestCatalogErrors(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	if rec := f.do(http.MethodGet, "/artists/3", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing artist = %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/albums", "", strings.NewReader(`{"artist_id":99,"title":"x","cover_path":"c.jpg"}`)); rec.Code != http.StatusNotFound {
		t.Fatalf("album for missing artist = %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/songs/search", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty search = %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/songs/search?query=tear", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("search = %d, want 200", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestUploadSong(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Angel")
	_ = mw.WriteField("artist_id", "3")
	_ = mw.WriteField("duration", "379")
	part, err := mw.CreateFormFile("song", "angel.mp3")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("ID3"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/songs/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	up := f.songs.uploaded
	if up.Title != "Angel" || up.ArtistID != 3 || up.Duration != 379 || up.Filename != "angel.mp3" || up.AlbumID != nil {
		t.Fatalf("upload = %+v", up)
	}
	if f.songs.body != "ID3" {
		t.Fatalf("body = %q", f.songs.body)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	f := newFixture(t, stubEntitlements{}, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Angel")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/songs/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
