package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, PerWindow(1, time.Second).Validate())
	require.ErrorIs(t, PerWindow(0, time.Second).Validate(), ErrInvalidConfig)
	require.ErrorIs(t, PerWindow(-1, time.Second).Validate(), ErrInvalidConfig)
	require.ErrorIs(t, PerWindow(1, 0).Validate(), ErrInvalidConfig)
}

func TestPolicyString(t *testing.T) {
	require.Equal(t, "2 req / 5s", PerWindow(2, 5*time.Second).String())
	require.Equal(t, "30 req / 1m0s", PerWindow(30, time.Minute).String())
}

func TestRoutePoliciesOverride(t *testing.T) {
	base := DefaultRoutePolicies()

	merged, err := base.Override(map[string]Policy{
		"GET /posts":         PerWindow(100, time.Minute),
		"DELETE /posts/{id}": PerWindow(1, time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, 100, merged.List.Requests)
	require.Equal(t, time.Hour, merged.Delete.Window)

	// Untouched routes keep their defaults.
	require.Equal(t, DefaultRootPolicy, merged.Root)
	require.Equal(t, DefaultCreatePolicy, merged.Create)
}

func TestRoutePoliciesOverrideRejectsUnknownRoute(t *testing.T) {
	_, err := DefaultRoutePolicies().Override(map[string]Policy{
		"GET /nope": PerWindow(1, time.Minute),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRoutePoliciesOverrideRejectsInvalidPolicy(t *testing.T) {
	_, err := DefaultRoutePolicies().Override(map[string]Policy{
		"GET /posts": PerWindow(0, time.Minute),
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
