package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Policy caps a route at Requests hits per Window. Policies are attached at
// route registration time and never change afterwards.
type Policy struct {
	Requests int
	Window   time.Duration
}

// PerWindow is shorthand for declaring a route policy inline.
func PerWindow(requests int, window time.Duration) Policy {
	return Policy{Requests: requests, Window: window}
}

func (p Policy) Validate() error {
	if p.Requests <= 0 {
		return fmt.Errorf("requests must be positive: %w", ErrInvalidConfig)
	}
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive: %w", ErrInvalidConfig)
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%d req / %s", p.Requests, p.Window)
}

// Default per-route policies for the posts API.
var (
	DefaultRootPolicy   = PerWindow(2, 5*time.Second)
	DefaultListPolicy   = PerWindow(30, time.Minute)
	DefaultCreatePolicy = PerWindow(5, time.Minute)
	DefaultReadPolicy   = PerWindow(20, time.Minute)
	DefaultUpdatePolicy = PerWindow(10, time.Minute)
	DefaultDeletePolicy = PerWindow(3, time.Minute)
)

// RoutePolicies holds the budget for every throttled route.
type RoutePolicies struct {
	Root   Policy
	List   Policy
	Create Policy
	Read   Policy
	Update Policy
	Delete Policy
}

// DefaultRoutePolicies returns the built-in per-route budgets.
func DefaultRoutePolicies() RoutePolicies {
	return RoutePolicies{
		Root:   DefaultRootPolicy,
		List:   DefaultListPolicy,
		Create: DefaultCreatePolicy,
		Read:   DefaultReadPolicy,
		Update: DefaultUpdatePolicy,
		Delete: DefaultDeletePolicy,
	}
}

// Override replaces individual route budgets from a configuration map keyed
// by "METHOD pattern". Keys are canonicalized with an upper-case method, so
// viper's lower-cased config keys still match. Unknown keys are reported so a
// typo in config does not silently leave a route on its default budget.
func (rp RoutePolicies) Override(routes map[string]Policy) (RoutePolicies, error) {
	slots := map[string]*Policy{
		"GET /":              &rp.Root,
		"GET /posts":         &rp.List,
		"POST /posts":        &rp.Create,
		"GET /posts/{id}":    &rp.Read,
		"PUT /posts/{id}":    &rp.Update,
		"DELETE /posts/{id}": &rp.Delete,
	}
	for route, policy := range routes {
		slot, ok := slots[canonicalRoute(route)]
		if !ok {
			return rp, fmt.Errorf("unknown rate limit route %q: %w", route, ErrInvalidConfig)
		}
		if err := policy.Validate(); err != nil {
			return rp, fmt.Errorf("rate limit route %q: %w", route, err)
		}
		*slot = policy
	}
	return rp, nil
}

func canonicalRoute(route string) string {
	method, pattern, ok := strings.Cut(strings.TrimSpace(route), " ")
	if !ok {
		return route
	}
	return strings.ToUpper(method) + " " + strings.TrimSpace(pattern)
}
