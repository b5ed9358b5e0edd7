package premium

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"melodia/internal/models"
	"melodia/internal/store"
)

// memoryStore mirrors the SQL semantics of store.Store for subscriptions.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.Subscription
	users  map[int64]bool
	err    error
}

func newMemoryStore(users ...int64) *memoryStore {
	m := &memoryStore{users: make(map[int64]bool)}
	for _, id := range users {
		m.users[id] = true
	}
	return m
}

func (m *memoryStore) ReplaceSubscription(ctx context.Context, userID int64, plan string, start, end time.Time) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Subscription{}, m.err
	}
	if !m.users[userID] {
		return models.Subscription{}, store.ErrUserNotFound
	}

	for i := range m.rows {
		row := &m.rows[i]
		if row.UserID == userID && row.Plan == plan && row.ActiveAt(start) {
			closed := start
			row.EndDate = &closed
		}
	}

	m.nextID++
	sub := models.Subscription{ID: m.nextID, UserID: userID, Plan: plan, StartDate: start, EndDate: &end, CreatedAt: start}
	m.rows = append(m.rows, sub)
	return sub, nil
}

func (m *memoryStore) ActiveSubscription(ctx context.Context, userID int64, plan string, at time.Time) (models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Subscription{}, m.err
	}

	var candidates []models.Subscription
	for _, row := range m.rows {
		if row.UserID == userID && row.Plan == plan && row.ActiveAt(at) {
			candidates = append(candidates, row)
		}
	}
	if len(candidates) == 0 {
		return models.Subscription{}, store.ErrSubscriptionNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.EndDate == nil && b.EndDate != nil:
			return true
		case a.EndDate != nil && b.EndDate == nil:
			return false
		case a.EndDate != nil && !a.EndDate.Equal(*b.EndDate):
			return a.EndDate.After(*b.EndDate)
		}
		return a.ID > b.ID
	})
	return candidates[0], nil
}

func (m *memoryStore) ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Subscription
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memoryStore) insert(userID int64, start time.Time, end *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows = append(m.rows, models.Subscription{ID: m.nextID, UserID: userID, Plan: models.PlanPremium, StartDate: start, EndDate: end})
}

func (m *memoryStore) effective(userID int64, at time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.ActiveAt(at) {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)}
}

func TestActivateThenStatus(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	svc := New(newMemoryStore(7), WithClock(clock.Now))

	sub, err := svc.Activate(ctx, 7)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	wantStart := clock.Now().Truncate(time.Microsecond)
	if !sub.StartDate.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", sub.StartDate, wantStart)
	}
	if sub.EndDate == nil || sub.EndDate.Sub(sub.StartDate) != DefaultDuration {
		t.Fatalf("end = %v, want start + %v", sub.EndDate, DefaultDuration)
	}

	status, err := svc.Status(ctx, 7)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.Premium {
		t.Fatal("expected premium after activation")
	}
	if status.EndDate == nil || !status.EndDate.Equal(*sub.EndDate) {
		t.Fatalf("status end = %v, want %v", status.EndDate, sub.EndDate)
	}
}

func TestReactivateLeavesOneEffectiveWindow(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	mem := newMemoryStore(7)
	svc := New(mem, WithClock(clock.Now))

	if _, err := svc.Activate(ctx, 7); err != nil {
		t.Fatalf("first Activate() error = %v", err)
	}
	clock.Advance(10 * 24 * time.Hour)
	second, err := svc.Activate(ctx, 7)
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}

	if n := mem.effective(7, clock.Now()); n != 1 {
		t.Fatalf("effective windows = %d, want 1", n)
	}

	status, err := svc.Status(ctx, 7)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.EndDate.Equal(*second.EndDate) {
		t.Fatalf("status end = %v, want second window end %v", status.EndDate, second.EndDate)
	}
}

func TestStatusExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	mem := newMemoryStore(7)
	svc := New(mem, WithClock(clock.Now))

	sub, err := svc.Activate(ctx, 7)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		premium bool
	}{
		{name: "just before end", at: sub.EndDate.Add(-time.Microsecond), premium: true},
		{name: "exactly at end", at: *sub.EndDate, premium: false},
		{name: "after end", at: sub.EndDate.Add(time.Hour), premium: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			svc := New(mem, WithClock(func() time.Time { return at }))
			status, err := svc.Status(ctx, 7)
			if err != nil {
				t.Fatalf("Status() error = %v", err)
			}
			if status.Premium != tt.premium {
				t.Fatalf("premium = %v, want %v", status.Premium, tt.premium)
			}
			if !status.Premium && (status.StartDate != nil || status.EndDate != nil) {
				t.Fatalf("non-premium status carries dates: %+v", status)
			}
		})
	}
}

func TestStatusOpenEndedWins(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	mem := newMemoryStore(7)
	later := clock.Now().Add(24 * time.Hour)
	mem.insert(7, clock.Now().Add(-time.Hour), &later)
	mem.insert(7, clock.Now().Add(-2*time.Hour), nil)

	status, err := New(mem, WithClock(clock.Now)).Status(ctx, 7)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.Premium || status.EndDate != nil {
		t.Fatalf("status = %+v, want open-ended premium", status)
	}
}

func TestStatusUnknownUser(t *testing.T) {
	status, err := New(newMemoryStore()).Status(context.Background(), 404)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Premium {
		t.Fatal("unknown user reported premium")
	}
}

func TestActivateUnknownUser(t *testing.T) {
	_, err := New(newMemoryStore()).Activate(context.Background(), 404)
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	mem := newMemoryStore(7)
	mem.err = errors.New("connection reset")
	svc := New(mem)

	if _, err := svc.Status(context.Background(), 7); !errors.Is(err, mem.err) {
		t.Fatalf("Status() error = %v", err)
	}
	if _, err := svc.IsPremium(context.Background(), 7); !errors.Is(err, mem.err) {
		t.Fatalf("IsPremium() error = %v", err)
	}
}

func TestWithDuration(t *testing.T) {
	svc := New(newMemoryStore(7), WithDuration(48*time.Hour), WithClock(newClock().Now))

	sub, err := svc.Activate(context.Background(), 7)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if got := sub.EndDate.Sub(sub.StartDate); got != 48*time.Hour {
		t.Fatalf("duration = %v", got)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(newMemoryStore(7)).Activate(ctx, 7); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	svc := New(newMemoryStore(7), WithClock(clock.Now))

	first, _ := svc.Activate(ctx, 7)
	clock.Advance(time.Hour)
	second, _ := svc.Activate(ctx, 7)

	history, err := svc.History(ctx, 7)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("history = %+v", history)
	}
}
