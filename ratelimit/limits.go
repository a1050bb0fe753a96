// Package ratelimit enforces per-category item quotas over an envelope,
// respecting item dependencies, and implements the X-Sentry-Rate-Limits
// wire format.
package ratelimit

import "github.com/getsentry/relay-go/envelope"

// ReasonCode names why a limit was applied (surfaced in outcomes and the
// X-Sentry-Rate-Limits header).
type ReasonCode string

// Scope names the quota scope a limit was issued at (spec.md §6's
// "Scope tokens: organization, project, key").
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeProject      Scope = "project"
	ScopeKey          Scope = "key"
)

// Limit is one active rate limit: a category, how long it lasts (seconds;
// 0 means "until further notice" / indefinite for this check), and the
// reason it was applied.
type Limit struct {
	Category   envelope.DataCategory
	RetryAfter int
	Scope      Scope
	Reason     ReasonCode
}

// RateLimits is a set of currently active limits, keyed by category.
type RateLimits struct {
	limits map[envelope.DataCategory]Limit
}

// NewRateLimits returns an empty limit set.
func NewRateLimits() *RateLimits {
	return &RateLimits{limits: map[envelope.DataCategory]Limit{}}
}

// Add merges l into the set, keeping the longer RetryAfter if the
// category already has an active limit.
func (r *RateLimits) Add(l Limit) {
	if r.limits == nil {
		r.limits = map[envelope.DataCategory]Limit{}
	}
	if existing, ok := r.limits[l.Category]; ok && existing.RetryAfter >= l.RetryAfter {
		return
	}
	r.limits[l.Category] = l
}

// Get returns the active limit for category, if any.
func (r *RateLimits) Get(category envelope.DataCategory) (Limit, bool) {
	if r.limits == nil {
		return Limit{}, false
	}
	l, ok := r.limits[category]
	return l, ok
}

// IsEmpty reports whether no limits are active.
func (r *RateLimits) IsEmpty() bool {
	return len(r.limits) == 0
}

// All returns every active limit, in no particular order.
func (r *RateLimits) All() []Limit {
	out := make([]Limit, 0, len(r.limits))
	for _, l := range r.limits {
		out = append(out, l)
	}
	return out
}

// Checker is the quota backend's callback contract: given a category and
// a quantity to charge, it returns the limits now active for that
// category (empty if the charge was accepted).
type Checker interface {
	Check(category envelope.DataCategory, quantity int64) (*RateLimits, error)
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(category envelope.DataCategory, quantity int64) (*RateLimits, error)

// Check implements Checker.
func (f CheckerFunc) Check(category envelope.DataCategory, quantity int64) (*RateLimits, error) {
	return f(category, quantity)
}
