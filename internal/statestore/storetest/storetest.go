// Package storetest holds the behaviour every statestore.Store backend must
// show. Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Sample returns a small saved context.
func Sample(tab string) *statestore.SavedContext {
	return &statestore.SavedContext{
		Tab: tab,
		Values: map[string]statestore.SavedValue{
			"L":     {Value: cty.NumberFloatVal(2100.25)},
			"H":     {Value: cty.NumberIntVal(1050), Auto: true},
			"hinge": {Value: cty.StringVal("left"), Active: true},
			"glass": {Value: cty.True},
		},
		Order:   []string{"hinge"},
		Counts:  map[string]int{"shelves": 3},
		SavedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) statestore.Store) {
	t.Run("SaveLoad", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		want := Sample("door")
		require.NoError(t, s.Save(ctx, "door-a", want))

		got, err := s.Load(ctx, "door-a")
		require.NoError(t, err)
		assertSame(t, want, got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "x", Sample("door")))
		require.NoError(t, s.Save(ctx, "x", Sample("cabinet")))
		got, err := s.Load(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "cabinet", got.Tab)
	})

	t.Run("LoadedCopyIsDetached", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		in := Sample("door")
		require.NoError(t, s.Save(ctx, "x", in))
		in.Order[0] = "mutated"
		in.Counts["shelves"] = 9

		got, err := s.Load(ctx, "x")
		require.NoError(t, err)
		got.Values["L"] = statestore.SavedValue{Value: cty.NumberIntVal(1)}

		again, err := s.Load(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, []string{"hinge"}, again.Order)
		assert.Equal(t, 3, again.Counts["shelves"])
		assert.True(t, again.Values["L"].Value.Equals(cty.NumberFloatVal(2100.25)).True())
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, statestore.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), statestore.ErrNotFound)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, n := range []string{"c", "a", "b"} {
			require.NoError(t, s.Save(ctx, n, Sample("door")))
		}
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)

		require.NoError(t, s.Delete(ctx, "b"))
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, names)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
			assert.Error(t, s.Save(ctx, name, Sample("door")), "name %q", name)
		}
		assert.Error(t, s.Save(ctx, "nil", nil))
	})

	t.Run("Concurrent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("ctx-%d", i%4)
				assert.NoError(t, s.Save(ctx, name, Sample("door")))
				_, err := s.Load(ctx, name)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, names, 4)
	})
}

func assertSame(t *testing.T, want, got *statestore.SavedContext) {
	t.Helper()
	assert.Equal(t, want.Tab, got.Tab)
	assert.Equal(t, want.Order, got.Order)
	assert.Equal(t, want.Counts, got.Counts)
	assert.True(t, want.SavedAt.Equal(got.SavedAt), "saved at %v, got %v", want.SavedAt, got.SavedAt)
	require.Len(t, got.Values, len(want.Values))
	for key, w := range want.Values {
		g, ok := got.Values[key]
		require.True(t, ok, "missing %s", key)
		assert.Equal(t, w.Auto, g.Auto, key)
		assert.Equal(t, w.Active, g.Active, key)
		assert.True(t, w.Value.Equals(g.Value).True(), "%s: want %#v, got %#v", key, w.Value, g.Value)
	}
}
