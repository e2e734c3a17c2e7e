package geometry

import (
	"context"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func number(t *testing.T, v cty.Value) float64 {
	t.Helper()
	f, err := calc.AsNumber(v)
	require.NoError(t, err)
	return f
}

func TestRules(t *testing.T) {
	snap := calc.MapSnapshot{
		Values: map[string]cty.Value{
			KeyLength:         cty.NumberIntVal(2100),
			KeyWidth:          cty.NumberIntVal(900),
			KeyHingeOffset:    cty.NumberIntVal(150),
			KeyFrameThickness: cty.NumberIntVal(40),
			KeyLockOffset:     cty.NumberIntVal(-30),
		},
		Counts: map[string]int{HingesTemplate: 3},
	}

	testCases := []struct {
		name  string
		fn    calc.Func
		index int
		want  float64
	}{
		{"half", Half, calc.NoIndex, 1050},
		{"first hinge", HingePosition, 0, 150},
		{"middle hinge", HingePosition, 1, 1050},
		{"last hinge", HingePosition, 2, 1950},
		{"frame inner width", FrameInnerWidth, calc.NoIndex, 820},
		{"lock height", LockHeight, calc.NoIndex, 1020},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.fn(snap, tc.index)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, number(t, v), 1e-9)
		})
	}
}

func TestHingePosition_Errors(t *testing.T) {
	base := map[string]cty.Value{
		KeyLength:      cty.NumberIntVal(2000),
		KeyHingeOffset: cty.NumberIntVal(150),
	}

	_, err := HingePosition(calc.MapSnapshot{Values: base, Counts: map[string]int{HingesTemplate: 2}}, calc.NoIndex)
	assert.Error(t, err)

	_, err = HingePosition(calc.MapSnapshot{Values: base}, 0)
	assert.ErrorContains(t, err, "not declared")

	_, err = HingePosition(calc.MapSnapshot{Values: base, Counts: map[string]int{HingesTemplate: 2}}, 2)
	assert.Error(t, err)

	wide := map[string]cty.Value{KeyLength: cty.NumberIntVal(200), KeyHingeOffset: cty.NumberIntVal(150)}
	_, err = HingePosition(calc.MapSnapshot{Values: wide, Counts: map[string]int{HingesTemplate: 2}}, 0)
	assert.ErrorContains(t, err, "does not fit")

	v, err := HingePosition(calc.MapSnapshot{Values: base, Counts: map[string]int{HingesTemplate: 1}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, number(t, v))
}

func TestRegister_Duplicate(t *testing.T) {
	reg := calc.NewRegistry(&Module{})
	assert.Equal(t, []string{"frame_inner_width", "half", "hinge_position", "lock_height"}, reg.IDs())
	assert.Panics(t, func() { (&Module{}).Register(reg) })
}

func f(v float64) *cty.Value {
	n := cty.NumberFloatVal(v)
	return &n
}

// The rules drive a live session: hinge positions follow L and the hinge count.
func TestRules_InSession(t *testing.T) {
	ctx := context.Background()
	tab := &config.Tab{ID: "door", Sections: []*config.Section{{
		ID: "frame",
		Parameters: []*config.Parameter{
			{Key: KeyLength, Kind: "float", Default: f(2100)},
			{Key: KeyHingeOffset, Kind: "float", Default: f(150)},
			{Key: "H", Kind: "float", Auto: true, DefaultAuto: true, Calc: "half"},
			{
				Key: HingesTemplate, Kind: "multi", CountMax: 4, CountDefault: 3,
				Template: &config.Parameter{Key: "hinge_#_y", Kind: "float", Auto: true, DefaultAuto: true, Calc: "hinge_position"},
			},
		},
	}}}
	s, err := schema.Load(ctx, tab, calc.NewRegistry(&Module{}))
	require.NoError(t, err)
	sess, err := session.New(ctx, s)
	require.NoError(t, err)

	get := func(key string) float64 {
		v, err := sess.Get(key)
		require.NoError(t, err)
		return number(t, v)
	}
	assert.Equal(t, 1050.0, get("H"))
	assert.Equal(t, 1950.0, get("hinge_2_y"))

	_, err = sess.Set(ctx, KeyLength, cty.NumberIntVal(2300), store.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, 1150.0, get("H"))
	assert.Equal(t, 2150.0, get("hinge_2_y"))

	_, err = sess.SetCount(ctx, HingesTemplate, 2)
	require.NoError(t, err)
	assert.Equal(t, 150.0, get("hinge_0_y"))
	assert.Equal(t, 2150.0, get("hinge_1_y"))
}
