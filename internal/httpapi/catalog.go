package httpapi

import (
	"net/http"

	"melodia/internal/store"
)

type artistRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type albumRequest struct {
	ArtistID  int64  `json:"artist_id"`
	Title     string `json:"title"`
	CoverPath string `json:"cover_path"`
}

func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.artists.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artists)
}

func (s *Server) handleCreateArtist(w http.ResponseWriter, r *http.Request) {
	var req artistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	artist, err := s.artists.Create(r.Context(), store.Artist{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "artist created", ID: artist.ID})
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	artist, err := s.artists.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

func (s *Server) handleUpdateArtist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req artistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.artists.Update(r.Context(), store.Artist{ID: id, Name: req.Name, Description: req.Description}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "artist updated"})
}

func (s *Server) handleDeleteArtist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.artists.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "artist deleted"})
}

func (s *Server) handleArtistProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.artists.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := s.albums.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

func (s *Server) handleCreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req albumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	album, err := s.albums.Create(r.Context(), store.Album{ArtistID: req.ArtistID, Title: req.Title, CoverPath: req.CoverPath})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "album created", ID: album.ID})
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	album, err := s.albums.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (s *Server) handleListArtistAlbums(w http.ResponseWriter, r *http.Request) {
	artistID, err := pathID(r, "artist_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	albums, err := s.albums.ListByArtist(r.Context(), artistID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

func (s *Server) handleUpdateAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req albumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	album := store.Album{ID: id, ArtistID: req.ArtistID, Title: req.Title, CoverPath: req.CoverPath}
	if _, err := s.albums.Update(r.Context(), album); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "album updated"})
}

func (s *Server) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.albums.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "album deleted"})
}
