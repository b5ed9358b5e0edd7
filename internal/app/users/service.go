package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"melodia/internal/access"
	"melodia/internal/auth"
	"melodia/internal/models"
	"melodia/internal/store"
)

// Store describes the persistence operations required by the user service.
type Store interface {
	CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// TokenIssuer signs credentials for authenticated users.
type TokenIssuer interface {
	Issue(userID int64) (string, time.Time, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Service exposes account workflows.
type Service interface {
	Register(ctx context.Context, username, email, password string) (int64, error)
	Login(ctx context.Context, email, password string) (Session, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, callerID, userID int64) error
}

type service struct {
	store  Store
	tokens TokenIssuer
}

// New wires a Service backed by the provided Store.
func New(store Store, tokens TokenIssuer) Service {
	return &service{store: store, tokens: tokens}
}

func (s *service) Register(ctx context.Context, username, email, password string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !strings.Contains(email, "@") {
		return 0, fmt.Errorf("%w: a valid email is required", store.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
			return 0, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		return 0, err
	}
	return s.store.CreateUser(ctx, username, email, hash)
}

// Login does the same amount of hashing work whether or not the account exists.
func (s *service) Login(ctx context.Context, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		auth.BurnCompare(password)
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, err
	}

	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	user.PasswordHash = nil
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *service) List(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// Delete only lets users remove their own account.
func (s *service) Delete(ctx context.Context, callerID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := access.RequireOwner(callerID, userID); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, userID)
}
