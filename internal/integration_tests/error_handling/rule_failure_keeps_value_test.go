package integration_tests

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/recalc"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/specialistvlad/paramgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// TestErrorHandling_RuleFailure_KeepsPreviousValue validates that a failing
// rule leaves its parameter at the last good value, records the failure and
// does not abort the rest of the cascade.
func TestErrorHandling_RuleFailure_KeepsPreviousValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// --- Arrange ---
	defs := `
		tab "frame" {
		  section "main" {
		    parameter "W" {
		      kind    = "float"
		      default = 800
		    }
		    parameter "inner" {
		      kind         = "float"
		      auto         = true
		      default_auto = true
		      calc         = "panel_count"
		    }
		    parameter "half_width" {
		      kind         = "float"
		      auto         = true
		      default_auto = true
		      formula      = "param.W / 2"
		    }
		  }
		}
	`
	panels := &testutil.SimpleModule{
		RuleID: "panel_count",
		Reads:  []string{"W"},
		Fn: func(snap calc.Snapshot, _ int) (cty.Value, error) {
			w, err := calc.Number(snap, "W")
			if err != nil {
				return cty.NilVal, err
			}
			if w <= 600 {
				return cty.NilVal, fmt.Errorf("width %g leaves no room for a panel", w)
			}
			return cty.NumberFloatVal(math.Floor(w / 300)), nil
		},
	}
	result := testutil.RunIntegrationTest(t, map[string]string{"frame.hcl": defs}, panels)
	require.NoError(t, result.Err)
	testutil.AssertNumber(t, result, "frame", "inner", 2)

	// --- Act ---
	var res *recalc.Result
	var st store.State
	testutil.Do(t, result, "frame", func(s *session.Session) error {
		var err error
		res, err = s.Set(ctx, "W", cty.NumberIntVal(500), store.SourceManual)
		if err != nil {
			return err
		}
		st, err = s.State("inner")
		return err
	})

	// --- Assert ---
	assert.Equal(t, []string{"inner"}, res.Failed)
	testutil.AssertNumber(t, result, "frame", "inner", 2)
	assert.ErrorIs(t, st.ComputeErr, engineerr.ErrCompute)
	testutil.AssertNumber(t, result, "frame", "half_width", 250)
	assert.Contains(t, result.LogOutput.String(), "Calculation rule failed")
}
