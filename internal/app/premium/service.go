package premium

import (
	"context"
	"errors"
	"time"

	"melodia/internal/models"
	"melodia/internal/store"
)

// DefaultDuration is the length of one activation window.
const DefaultDuration = 30 * 24 * time.Hour

// Store captures the persistence needs of entitlement workflows.
type Store interface {
	ReplaceSubscription(ctx context.Context, userID int64, plan string, start, end time.Time) (models.Subscription, error)
	ActiveSubscription(ctx context.Context, userID int64, plan string, at time.Time) (models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// Status answers whether a user is premium right now. StartDate and EndDate
// are set only when Premium is true.
type Status struct {
	Premium   bool       `json:"premium"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Service computes and mutates premium entitlement.
type Service interface {
	Activate(ctx context.Context, userID int64) (models.Subscription, error)
	Status(ctx context.Context, userID int64) (Status, error)
	IsPremium(ctx context.Context, userID int64) (bool, error)
	History(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// Option customises the Service.
type Option func(*service)

// WithDuration overrides DefaultDuration. Non-positive values are ignored.
func WithDuration(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.duration = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	store    Store
	duration time.Duration
	now      func() time.Time
}

// New constructs a Service backed by the provided Store.
func New(store Store, opts ...Option) Service {
	s := &service{
		store:    store,
		duration: DefaultDuration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate starts a fresh window [now, now+duration) and retires any window
// still running, so repeated calls leave exactly one effective window.
func (s *service) Activate(ctx context.Context, userID int64) (models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return models.Subscription{}, err
	}

	start := s.clock()
	return s.store.ReplaceSubscription(ctx, userID, models.PlanPremium, start, start.Add(s.duration))
}

// Status never fails for unknown users; they are reported as not premium.
func (s *service) Status(ctx context.Context, userID int64) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	sub, err := s.store.ActiveSubscription(ctx, userID, models.PlanPremium, s.clock())
	if errors.Is(err, store.ErrSubscriptionNotFound) {
		return Status{Premium: false}, nil
	}
	if err != nil {
		return Status{}, err
	}

	start := sub.StartDate
	return Status{
		Premium:   true,
		StartDate: &start,
		EndDate:   sub.EndDate,
	}, nil
}

func (s *service) IsPremium(ctx context.Context, userID int64) (bool, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Premium, nil
}

func (s *service) History(ctx context.Context, userID int64) ([]models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListSubscriptions(ctx, userID)
}

// clock returns UTC at microsecond resolution, matching what Postgres stores.
func (s *service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
