package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated means no usable credential came with the request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrEntitlementRequired means the caller is known but not premium.
	ErrEntitlementRequired = errors.New("premium subscription required")
	// ErrQuotaExceeded means a free user already owns the maximum number of playlists.
	ErrQuotaExceeded = errors.New("playlist limit reached")
	// ErrForbidden means the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
)

// DefaultFreePlaylistLimit caps playlists for users without premium.
const DefaultFreePlaylistLimit = 3

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Entitlements answers whether a user currently holds premium.
type Entitlements interface {
	IsPremium(ctx context.Context, userID int64) (bool, error)
}

// Guard makes the authentication, entitlement and quota decisions shared by
// the HTTP layer.
type Guard struct {
	tokens       TokenVerifier
	entitlements Entitlements
	freeLimit    int
}

// Option customises a Guard.
type Option func(*Guard)

// WithFreePlaylistLimit overrides DefaultFreePlaylistLimit. Values below one
// are ignored.
func WithFreePlaylistLimit(limit int) Option {
	return func(g *Guard) {
		if limit > 0 {
			g.freeLimit = limit
		}
	}
}

// NewGuard wires a Guard.
func NewGuard(tokens TokenVerifier, entitlements Entitlements, opts ...Option) *Guard {
	g := &Guard{
		tokens:       tokens,
		entitlements: entitlements,
		freeLimit:    DefaultFreePlaylistLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate verifies the Authorization header value. Both "Bearer <token>"
// and a bare token are accepted.
func (g *Guard) Authenticate(header string) (int64, error) {
	token := TokenFromHeader(header)
	if token == "" {
		return 0, ErrUnauthenticated
	}
	userID, err := g.tokens.Verify(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return userID, nil
}

// RequirePremium authenticates the caller and checks the entitlement as of
// now. Entitlement lookup failures are returned unchanged so they surface as
// store failures rather than as a refusal.
func (g *Guard) RequirePremium(ctx context.Context, header string) (int64, error) {
	userID, err := g.Authenticate(header)
	if err != nil {
		return 0, err
	}

	premium, err := g.entitlements.IsPremium(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check entitlement: %w", err)
	}
	if !premium {
		return 0, ErrEntitlementRequired
	}
	return userID, nil
}

// PlaylistLimit returns how many playlists the user may own; zero means
// unlimited.
func (g *Guard) PlaylistLimit(ctx context.Context, userID int64) (int, error) {
	premium, err := g.entitlements.IsPremium(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check entitlement: %w", err)
	}
	if premium {
		return 0, nil
	}
	return g.freeLimit, nil
}

// RequireOwner refuses callers acting on resources they do not own.
func RequireOwner(callerID, ownerID int64) error {
	if callerID != ownerID {
		return ErrForbidden
	}
	return nil
}

// TokenFromHeader strips an optional Bearer scheme from an Authorization value.
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	return header
}
