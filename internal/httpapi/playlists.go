package httpapi

import (
	"net/http"
)

type playlistRequest struct {
	Name string `json:"name"`
}

type playlistSongRequest struct {
	SongID  int64   `json:"song_id"`
	SongIDs []int64 `json:"song_ids"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request, userID int64) {
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := s.playlists.Create(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "playlist created", ID: playlist.ID})
}

func (s *Server) handleListOwnPlaylists(w http.ResponseWriter, r *http.Request, userID int64) {
	playlists, err := s.playlists.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleListUserPlaylists(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	playlists, err := s.playlists.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	playlist, err := s.playlists.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.playlists.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "playlist deleted"})
}

// handleAddPlaylistSong accepts a single song_id or a song_ids batch.
func (s *Server) handleAddPlaylistSong(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req playlistSongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	songIDs := req.SongIDs
	if req.SongID > 0 {
		songIDs = append([]int64{req.SongID}, songIDs...)
	}
	if len(songIDs) == 0 {
		writeError(w, r, badRequest("song_id is required"))
		return
	}

	added, err := s.playlists.AddSongs(r.Context(), userID, id, songIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string `json:"message"`
		Added   int64  `json:"added"`
	}{Message: "song added to playlist", Added: added})
}

func (s *Server) handleListPlaylistSongs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	songs, err := s.playlists.Songs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleRemovePlaylistSong(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	songID, err := pathID(r, "song_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.playlists.RemoveSong(r.Context(), userID, id, songID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "song removed from playlist"})
}
