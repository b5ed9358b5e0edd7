package models

import "time"

// PlanPremium is the only paid plan.
const PlanPremium = "premium"

// Subscription is one entitlement window. EndDate is nil for an open-ended
// window.
type Subscription struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Plan      string     `json:"plan" db:"plan"`
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the window still grants the plan at t. The end
// bound is exclusive, so a window ending exactly at t has expired.
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.EndDate == nil || s.EndDate.After(t)
}
