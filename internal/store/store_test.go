package store

import (
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestPutGetState(t *testing.T) {
	s := New()

	_, err := s.Get("length")
	assert.ErrorIs(t, err, engineerr.ErrUnknownKey)

	s.Put("length", State{Value: cty.NumberFloatVal(2100), Source: SourceDefault})
	s.Put("half", State{Value: cty.NumberFloatVal(1050), Auto: true, Source: SourceComputed})

	v, err := s.Get("length")
	require.NoError(t, err)
	assert.True(t, Equal(cty.NumberIntVal(2100), v))

	st, err := s.State("half")
	require.NoError(t, err)
	assert.True(t, st.Auto)
	assert.Equal(t, SourceComputed, st.Source)

	// State returns a copy.
	st.Auto = false
	again, _ := s.State("half")
	assert.True(t, again.Auto)

	assert.Equal(t, []string{"length", "half"}, s.Keys())
	assert.Equal(t, 2, s.Len())
}

func TestUpdateAndRemove(t *testing.T) {
	s := New()
	s.Put("a", State{Value: cty.Zero})
	s.Put("b", State{Value: cty.Zero})
	s.Put("c", State{Value: cty.Zero})

	require.NoError(t, s.Update("b", func(st *State) { st.Stale = true }))
	st, _ := s.State("b")
	assert.True(t, st.Stale)

	err := s.Update("missing", func(*State) {})
	assert.ErrorIs(t, err, engineerr.ErrUnknownKey)

	s.Remove("b", "missing")
	assert.False(t, s.Has("b"))
	assert.Equal(t, []string{"a", "c"}, s.Keys())
}

func TestObserver(t *testing.T) {
	s := New()
	type change struct {
		key      string
		old, new cty.Value
	}
	var seen []change
	s.Observe(func(key string, old, new State) {
		seen = append(seen, change{key, old.Value, new.Value})
	})

	s.Put("a", State{Value: cty.NumberIntVal(1)})
	require.NoError(t, s.Update("a", func(st *State) { st.Value = cty.NumberIntVal(2) }))
	s.Remove("a")

	require.Len(t, seen, 3)
	assert.True(t, seen[0].old.IsNull())
	assert.True(t, Equal(cty.NumberIntVal(2), seen[1].new))
	assert.True(t, seen[2].new.IsNull())
}

func TestArrange(t *testing.T) {
	s := New()
	for _, k := range []string{"a", "hinge_2", "b", "hinge_0", "hinge_1"} {
		s.Put(k, State{Value: cty.Zero})
	}
	s.Arrange([]string{"a", "hinge_0", "hinge_1", "hinge_2", "b"})
	assert.Equal(t, []string{"a", "hinge_0", "hinge_1", "hinge_2", "b"}, s.Keys())
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.Put("length", State{Value: cty.NumberFloatVal(2100)})
	s.SetCount("hinges", 3)

	var snap calc.Snapshot = s.Snapshot()
	n, err := calc.Number(snap, "length")
	require.NoError(t, err)
	assert.Equal(t, 2100.0, n)

	c, ok := snap.Count("hinges")
	assert.True(t, ok)
	assert.Equal(t, 3, c)
	assert.Equal(t, map[string]int{"hinges": 3}, s.Counts())

	// The snapshot is a live view.
	s.Put("length", State{Value: cty.NumberFloatVal(3000)})
	n, _ = calc.Number(snap, "length")
	assert.Equal(t, 3000.0, n)

	_, ok = snap.Value("missing")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(cty.NumberIntVal(1500), cty.NumberFloatVal(1500)))
	assert.False(t, Equal(cty.NumberIntVal(1500), cty.NumberFloatVal(1500.5)))
	assert.False(t, Equal(cty.StringVal("1"), cty.NumberIntVal(1)))
	assert.True(t, Equal(cty.NilVal, cty.NullVal(cty.Number)))
	assert.False(t, Equal(cty.NilVal, cty.True))
	assert.Equal(t, "computed", SourceComputed.String())
}
