package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	countPlaylistsQuery = regexp.QuoteMeta(`SELECT COUNT(*) FROM playlists WHERE user_id = $1`)
	insertPlaylistQuery = regexp.QuoteMeta(`INSERT INTO playlists (user_id, name)`)
)

func TestCreatePlaylistWithinLimit(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(countPlaylistsQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(insertPlaylistQuery).WithArgs(int64(1), "road trip").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), created))
	mock.ExpectCommit()

	playlist, err := s.CreatePlaylist(context.Background(), 1, "  road trip ", 3)
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if playlist.ID != 9 || playlist.Name != "road trip" {
		t.Fatalf("playlist = %+v", playlist)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePlaylistLimitReached(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(countPlaylistsQuery).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	_, err := s.CreatePlaylist(context.Background(), 1, "fourth", 3)
	if !errors.Is(err, ErrPlaylistLimitReached) {
		t.Fatalf("error = %v, want ErrPlaylistLimitReached", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePlaylistUnlimitedSkipsCount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(insertPlaylistQuery).WithArgs(int64(2), "all the things").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), time.Now()))
	mock.ExpectCommit()

	if _, err := s.CreatePlaylist(context.Background(), 2, "all the things", 0); err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePlaylistValidation(t *testing.T) {
	s, _ := newMockStore(t)
	if _, err := s.CreatePlaylist(context.Background(), 1, "   ", 3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAddSongsToPlaylist(t *testing.T) {
	insertSongs := regexp.QuoteMeta(`INSERT INTO playlist_songs (playlist_id, song_id)`)

	t.Run("batch", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(insertSongs).
			WithArgs(int64(9), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))

		added, err := s.AddSongsToPlaylist(context.Background(), 9, []int64{4, 5})
		if err != nil {
			t.Fatalf("AddSongsToPlaylist() error = %v", err)
		}
		if added != 2 {
			t.Fatalf("added = %d, want 2", added)
		}
	})

	t.Run("unknown song", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(insertSongs).WillReturnError(&pgconn.PgError{Code: "23503"})

		if _, err := s.AddSongsToPlaylist(context.Background(), 9, []int64{404}); !errors.Is(err, ErrSongNotFound) {
			t.Fatalf("error = %v, want ErrSongNotFound", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		s, _ := newMockStore(t)
		if _, err := s.AddSongsToPlaylist(context.Background(), 9, nil); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestRemoveSongFromPlaylistMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM playlist_songs`)).
		WithArgs(int64(9), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.RemoveSongFromPlaylist(context.Background(), 9, 4); !errors.Is(err, ErrPlaylistSongNotFound) {
		t.Fatalf("error = %v, want ErrPlaylistSongNotFound", err)
	}
}
