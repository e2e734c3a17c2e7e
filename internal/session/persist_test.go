package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSaveRestore(t *testing.T) {
	ctx := context.Background()
	src := newSession(t, shelfTab())
	_, err := src.SetCount(ctx, "shelves", 3)
	require.NoError(t, err)
	_, err = src.Set(ctx, "height", cty.NumberFloatVal(2400), store.SourceManual)
	require.NoError(t, err)
	_, err = src.Set(ctx, "shelf_1_gap", cty.NumberFloatVal(42), store.SourceManual)
	require.NoError(t, err)
	require.NoError(t, src.SetActive("shelf_0_gap", false))
	require.NoError(t, src.Reorder([]string{"shelf_2_gap", "shelf_1_gap"}))
	_, err = src.SetAuto(ctx, "divider_1_y", false)
	require.NoError(t, err)

	saved := src.Save()
	assert.Equal(t, "cabinet", saved.Tab)
	assert.Equal(t, map[string]int{"shelves": 3, "dividers": 2}, saved.Counts)
	assert.Equal(t, []string{"shelf_2_gap", "shelf_1_gap"}, saved.Order)

	// Round trip through the wire format as a persisted context would.
	data, err := statestore.Marshal(saved)
	require.NoError(t, err)
	decoded, err := statestore.Unmarshal(data)
	require.NoError(t, err)

	dst := newSession(t, shelfTab())
	_, err = dst.Restore(ctx, decoded)
	require.NoError(t, err)

	assert.Equal(t, src.Keys(), dst.Keys())
	assert.Equal(t, 2400.0, numberOf(t, dst, "height"))
	assert.Equal(t, 42.0, numberOf(t, dst, "shelf_1_gap"))
	assert.Equal(t, []string{"shelf_2_gap", "shelf_1_gap"}, dst.ActiveOrder())
	assert.Equal(t, 800.0, numberOf(t, dst, "divider_0_y"), "auto values are recomputed from restored inputs")

	st, _ := dst.State("divider_1_y")
	assert.False(t, st.Auto)
	assert.Equal(t, store.SourceManual, st.Source)
	assert.Equal(t, numberOf(t, src, "divider_1_y"), numberOf(t, dst, "divider_1_y"))
}

func TestRestore_Errors(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, shelfTab())

	_, err := sess.Restore(ctx, nil)
	assert.Error(t, err)

	_, err = sess.Restore(ctx, &statestore.SavedContext{Tab: "door"})
	assert.Error(t, err)

	_, err = sess.Restore(ctx, &statestore.SavedContext{Tab: "cabinet", Counts: map[string]int{"shelves": 99}})
	assert.ErrorIs(t, err, engineerr.ErrSchema)
	n, _ := sess.Count("shelves")
	assert.Equal(t, 5, n)
}

func TestRestore_SkipsValuesThatNoLongerFit(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, shelfTab())
	_, err := sess.Restore(ctx, &statestore.SavedContext{
		Tab: "cabinet",
		Values: map[string]statestore.SavedValue{
			"height":  {Value: cty.StringVal("tall")},
			"removed": {Value: cty.NumberIntVal(1)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, numberOf(t, sess, "height"))
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	tab := halfTab()
	tab.Preview = []*config.Shape{
		{ID: "leaf", Type: "rectangle", X: "10", Y: "0", Width: "param.L / 10", Height: "param.H / 10", Color: "#aa8844"},
		{ID: "broken", Type: "line", Width: "100 / (param.H - param.H)"},
	}
	sess := newSession(t, tab)
	_, err := sess.SetAuto(ctx, "H", true)
	require.NoError(t, err)

	shapes := sess.Preview()
	require.Len(t, shapes, 2)
	leaf := shapes[0]
	require.NoError(t, leaf.Err)
	assert.Equal(t, 10.0, leaf.X)
	assert.Equal(t, 210.0, leaf.Width)
	assert.Equal(t, 105.0, leaf.Height)
	assert.Equal(t, "#aa8844", leaf.Color)

	assert.Error(t, shapes[1].Err)
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	model := &config.Model{Tabs: []*config.Tab{halfTab(), shelfTab()}}
	m := session.NewManager(calc.NewRegistry())
	require.NoError(t, m.LoadAll(ctx, model))
	assert.Equal(t, []string{"cabinet", "door"}, m.Tabs())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.Do("door", func(s *session.Session) error {
				_, err := s.Set(ctx, "L", cty.NumberIntVal(int64(1000+i)), store.SourceManual)
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	err := m.Do("missing", func(*session.Session) error { return nil })
	assert.ErrorIs(t, err, engineerr.ErrUnknownKey)

	m.Remove("door")
	assert.Equal(t, []string{"cabinet"}, m.Tabs())
}

func TestManager_LoadAllFailsAtomically(t *testing.T) {
	broken := &config.Tab{ID: "broken", Sections: []*config.Section{{
		ID: "s",
		Parameters: []*config.Parameter{
			{Key: "a", Kind: "float", Auto: true, Formula: "param.b"},
			{Key: "b", Kind: "float", Auto: true, Formula: "param.a"},
		},
	}}}
	m := session.NewManager(nil)
	err := m.LoadAll(context.Background(), &config.Model{Tabs: []*config.Tab{halfTab(), broken}})
	assert.ErrorIs(t, err, engineerr.ErrCyclicDependency)
	assert.Empty(t, m.Tabs())
}
