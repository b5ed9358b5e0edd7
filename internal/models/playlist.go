package models

import "time"

// Playlist is a user-owned, named list of songs.
type Playlist struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	SongCount int       `json:"song_count" db:"song_count"`
}
