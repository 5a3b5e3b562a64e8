// Package session owns the client-side session lifecycle: the persisted
// access/refresh token pair, the cached account snapshots, expiry
// inspection, and single-flight refresh coordination.
package session

import "time"

// User is the denormalized account snapshot returned at login/refresh time.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Company is the tenant snapshot.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Subscription is the billing snapshot.
type Subscription struct {
	Plan             string    `json:"plan"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

// Record is the single authoritative session entity. It lives in exactly
// one storage tier at a time and is mutated only by login, logout and
// refresh.
type Record struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *User         `json:"user,omitempty"`
	Company      *Company      `json:"company,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// clone returns a shallow-safe copy so callers never share the manager's
// internal record.
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}

	out := *r
	if r.User != nil {
		u := *r.User
		out.User = &u
	}
	if r.Company != nil {
		c := *r.Company
		out.Company = &c
	}
	if r.Subscription != nil {
		s := *r.Subscription
		out.Subscription = &s
	}

	return &out
}
