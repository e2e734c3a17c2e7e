package testutil

import (
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Number reads the numeric value of key in tab.
func Number(t *testing.T, result *HarnessResult, tab, key string) float64 {
	t.Helper()
	var v cty.Value
	err := result.App.Manager().Do(tab, func(s *session.Session) error {
		var err error
		v, err = s.Get(key)
		return err
	})
	require.NoError(t, err, "reading %s.%s", tab, key)
	f, err := calc.AsNumber(v)
	require.NoError(t, err, "%s.%s is not a number", tab, key)
	return f
}

// AssertNumber checks the numeric value of key in tab.
func AssertNumber(t *testing.T, result *HarnessResult, tab, key string, want float64) {
	t.Helper()
	require.InDelta(t, want, Number(t, result, tab, key), 1e-9, "%s.%s", tab, key)
}

// Do runs fn against the session of tab and fails the test on error.
func Do(t *testing.T, result *HarnessResult, tab string, fn func(*session.Session) error) {
	t.Helper()
	require.NoError(t, result.App.Manager().Do(tab, fn))
}
