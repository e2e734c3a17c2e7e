package recalc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/recalc"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type recordingMetrics struct {
	results []*recalc.Result
}

func (m *recordingMetrics) ObserveCascade(_ string, res *recalc.Result, _ time.Duration) {
	m.results = append(m.results, res)
}

func f64(v float64) *float64 { return &v }

func num(v float64) *cty.Value {
	n := cty.NumberFloatVal(v)
	return &n
}

// setup loads params into a fresh store and engine with every auto parameter
// computed once.
func setup(t *testing.T, params ...*config.Parameter) (*recalc.Engine, *store.Store, *recordingMetrics) {
	t.Helper()
	return setupWithRules(t, nil, params...)
}

func setupWithRules(t *testing.T, reg *calc.Registry, params ...*config.Parameter) (*recalc.Engine, *store.Store, *recordingMetrics) {
	t.Helper()
	tab := &config.Tab{ID: "t", Sections: []*config.Section{{ID: "s", Parameters: params}}}
	s, err := schema.Load(context.Background(), tab, reg)
	require.NoError(t, err)
	resolved, err := s.ResolveTemplates(nil)
	require.NoError(t, err)
	g, err := schema.BuildGraph(resolved)
	require.NoError(t, err)

	st := store.New()
	for _, d := range resolved {
		st.Put(d.Key, store.State{Value: d.Default, Auto: d.DefaultAuto, Active: d.DefaultActive})
	}
	m := &recordingMetrics{}
	e := recalc.New(g, resolved, st, recalc.WithMetrics(m), recalc.WithTab("t"))
	e.RecomputeAll(context.Background())
	return e, st, m
}

func value(t *testing.T, st *store.Store, key string) float64 {
	t.Helper()
	v, err := st.Get(key)
	require.NoError(t, err)
	f, _ := v.AsBigFloat().Float64()
	return f
}

func set(t *testing.T, st *store.Store, key string, v float64) {
	t.Helper()
	require.NoError(t, st.Update(key, func(s *store.State) {
		s.Value = cty.NumberFloatVal(v)
		s.Source = store.SourceManual
	}))
}

func TestRecalc_HalfLength(t *testing.T) {
	e, st, m := setup(t,
		&config.Parameter{Key: "L", Kind: "float", Default: num(2100)},
		&config.Parameter{Key: "H", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.L / 2"},
	)
	assert.Equal(t, 1050.0, value(t, st, "H"))
	h, _ := st.State("H")
	assert.Equal(t, store.SourceComputed, h.Source)

	set(t, st, "L", 3000)
	res, err := e.Recalc(context.Background(), "L")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, value(t, st, "H"))
	assert.Equal(t, []string{"H"}, res.Recomputed)
	assert.Equal(t, []string{"L", "H"}, res.Changed)
	assert.Len(t, m.results, 2)
}

func TestRecalc_ManualDependentIsStale(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(10)},
		&config.Parameter{Key: "b", Kind: "float", Auto: true, Formula: "param.a * 2"},
		&config.Parameter{Key: "c", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.b + 1"},
	)
	// b is manual at its default 0, c follows it.
	assert.Equal(t, 1.0, value(t, st, "c"))

	set(t, st, "a", 20)
	res, err := e.Recalc(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, res.Stale)
	assert.Empty(t, res.Recomputed, "traversal stops at a manual parameter")
	assert.Equal(t, 0.0, value(t, st, "b"))
	b, _ := st.State("b")
	assert.True(t, b.Stale)
	assert.Equal(t, 1.0, value(t, st, "c"))
}

func TestRecalc_FixedPointShortCircuit(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(20)},
		&config.Parameter{Key: "b", Kind: "float", Auto: true, DefaultAuto: true, Formula: "floor(param.a / 10)"},
		&config.Parameter{Key: "c", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.b * 2"},
	)
	assert.Equal(t, 4.0, value(t, st, "c"))

	set(t, st, "a", 21)
	res, err := e.Recalc(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Recomputed, "c is not evaluated when b did not change")
	assert.Equal(t, []string{"a"}, res.Changed)
}

func TestRecalc_DiamondEvaluatesOnce(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(1)},
		&config.Parameter{Key: "b", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.a + 1"},
		&config.Parameter{Key: "c", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.a * 3"},
		&config.Parameter{Key: "d", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.b + param.c"},
	)
	assert.Equal(t, 5.0, value(t, st, "d"))

	set(t, st, "a", 2)
	res, err := e.Recalc(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, res.Recomputed)
	assert.Equal(t, 9.0, value(t, st, "d"))
}

func TestRecalc_ComputeErrorKeepsPreviousValue(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(4)},
		&config.Parameter{Key: "ratio", Kind: "float", Auto: true, DefaultAuto: true, Formula: "100 / param.a"},
		&config.Parameter{Key: "twice", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.a * 2"},
	)
	assert.Equal(t, 25.0, value(t, st, "ratio"))

	set(t, st, "a", 0)
	res, err := e.Recalc(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, []string{"ratio"}, res.Failed)
	assert.Equal(t, 25.0, value(t, st, "ratio"), "the previous value is kept")
	ratio, _ := st.State("ratio")
	var cerr *engineerr.ComputeError
	require.True(t, errors.As(ratio.ComputeErr, &cerr))
	assert.Equal(t, "ratio", cerr.Key)

	assert.Equal(t, 0.0, value(t, st, "twice"), "sibling branches still recompute")

	set(t, st, "a", 5)
	_, err = e.Recalc(context.Background(), "a")
	require.NoError(t, err)
	ratio, _ = st.State("ratio")
	assert.NoError(t, ratio.ComputeErr, "a successful evaluation clears the error")
	assert.Equal(t, 20.0, value(t, st, "ratio"))
}

func TestRecalc_PanickingRuleIsAComputeError(t *testing.T) {
	reg := calc.NewRegistry()
	reg.Register("explode", []string{"a"}, func(snap calc.Snapshot, _ int) (cty.Value, error) {
		a, err := calc.Number(snap, "a")
		if err != nil {
			return cty.NilVal, err
		}
		if a > 10 {
			var sizes map[string]float64
			sizes["a"] = a
		}
		return cty.NumberFloatVal(a), nil
	})
	e, st, _ := setupWithRules(t, reg,
		&config.Parameter{Key: "a", Kind: "float", Default: num(4)},
		&config.Parameter{Key: "copy", Kind: "float", Auto: true, DefaultAuto: true, Calc: "explode"},
		&config.Parameter{Key: "twice", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.a * 2"},
	)
	assert.Equal(t, 4.0, value(t, st, "copy"))

	set(t, st, "a", 11)
	var res *recalc.Result
	require.NotPanics(t, func() {
		var err error
		res, err = e.Recalc(context.Background(), "a")
		require.NoError(t, err)
	})

	assert.Equal(t, []string{"copy"}, res.Failed)
	assert.Equal(t, 4.0, value(t, st, "copy"))
	assert.Equal(t, 22.0, value(t, st, "twice"), "the cascade continues past the panic")
	copyState, _ := st.State("copy")
	assert.ErrorIs(t, copyState.ComputeErr, engineerr.ErrCompute)
	assert.Contains(t, copyState.ComputeErr.Error(), "panicked")
}

func TestRecomputeAll_FailedAutoParameterReadsComputed(t *testing.T) {
	_, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(0)},
		&config.Parameter{Key: "ratio", Kind: "float", Default: num(1), Auto: true, DefaultAuto: true, Formula: "100 / param.a"},
	)
	ratio, err := st.State("ratio")
	require.NoError(t, err)
	assert.True(t, ratio.Auto)
	assert.Equal(t, store.SourceComputed, ratio.Source)
	assert.Error(t, ratio.ComputeErr)
	assert.Equal(t, 1.0, value(t, st, "ratio"), "the default is retained")
}

func TestRecalc_OutOfBoundsIsStoredAndFlagged(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(5)},
		&config.Parameter{Key: "b", Kind: "float", Max: f64(1000), Auto: true, DefaultAuto: true, Formula: "param.a * 100"},
	)
	set(t, st, "a", 12.5)
	res, err := e.Recalc(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 1250.0, value(t, st, "b"), "values are not clamped")
	b, _ := st.State("b")
	assert.True(t, b.OutOfBounds)
	assert.Equal(t, []string{"b"}, res.OutOfBounds)
}

func TestRecompute(t *testing.T) {
	e, st, _ := setup(t,
		&config.Parameter{Key: "a", Kind: "float", Default: num(10)},
		&config.Parameter{Key: "b", Kind: "float", Auto: true, Formula: "param.a * 2"},
		&config.Parameter{Key: "c", Kind: "float", Auto: true, DefaultAuto: true, Formula: "param.b + 1"},
	)
	require.NoError(t, st.Update("b", func(s *store.State) { s.Auto = true }))

	res, err := e.Recompute(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, res.Recomputed)
	assert.Equal(t, 21.0, value(t, st, "c"))

	_, err = e.Recompute(context.Background(), "missing")
	assert.ErrorIs(t, err, engineerr.ErrUnknownKey)
	_, err = e.Recalc(context.Background(), "missing")
	assert.ErrorIs(t, err, engineerr.ErrUnknownKey)
}
