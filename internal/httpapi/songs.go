package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"melodia/internal/app/songs"
	"melodia/internal/logging"
	"melodia/internal/store"
)

// uploadField is the multipart field carrying the audio file.
const uploadField = "song"

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	list, err := s.songs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	song, err := s.songs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (s *Server) handleSearchSongs(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, r, badRequest("query parameter is required"))
		return
	}

	results, err := s.songs.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCreateSong(w http.ResponseWriter, r *http.Request) {
	var req songs.NewSong
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	song, err := s.songs.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string     `json:"message"`
		ID      int64      `json:"id"`
		Song    store.Song `json:"song"`
	}{Message: "song created", ID: song.ID, Song: song})
}

func (s *Server) handleUploadSong(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, messageResponse{Message: "upload too large"})
			return
		}
		writeError(w, r, badRequest("invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, r, badRequest("no file uploaded in field "+uploadField))
		return
	}
	defer file.Close()

	upload := songs.Upload{
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Body:     file,
	}
	if upload.ArtistID, err = formInt(r, "artist_id", true); err != nil {
		writeError(w, r, err)
		return
	}
	if albumID, err := formInt(r, "album_id", false); err != nil {
		writeError(w, r, err)
		return
	} else if albumID > 0 {
		upload.AlbumID = &albumID
	}
	duration, err := formInt(r, "duration", false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	upload.Duration = int(duration)

	song, err := s.songs.Upload(r.Context(), upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string     `json:"message"`
		ID      int64      `json:"id"`
		Song    store.Song `json:"song"`
	}{Message: "song uploaded", ID: song.ID, Song: song})
}

func (s *Server) handleStreamSong(w http.ResponseWriter, r *http.Request) {
	s.serveSong(w, r, false)
}

func (s *Server) handleDownloadSong(w http.ResponseWriter, r *http.Request, _ int64) {
	s.serveSong(w, r, true)
}

func (s *Server) serveSong(w http.ResponseWriter, r *http.Request, attachment bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	song, obj, err := s.songs.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if attachment {
		filename := downloadName(song)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	if seeker, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", obj.ModTime, seeker)
		return
	}

	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		logging.WithContext(r.Context()).Warn().Err(err).Int64("song_id", id).Msg("song transfer interrupted")
	}
}

func downloadName(song store.Song) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r < 0x20:
			return -1
		}
		return r
	}, strings.TrimSpace(song.Title))
	if base == "" {
		base = "song-" + strconv.FormatInt(song.ID, 10)
	}
	return base + path.Ext(song.FilePath)
}

func formInt(r *http.Request, field string, required bool) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		if required {
			return 0, badRequest(field + " is required")
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + field)
	}
	return n, nil
}
