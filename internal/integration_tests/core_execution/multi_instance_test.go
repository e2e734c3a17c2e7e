package integration_tests

import (
	"context"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/specialistvlad/paramgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const doorHCL = `
tab "door" {
  section "frame" {
    parameter "L" {
      kind    = "float"
      default = 2100
      min     = 1000
      max     = 3000
    }
    parameter "hinge_offset" {
      kind    = "float"
      default = 150
    }
    parameter "hinges" {
      kind          = "multi"
      count_min     = 1
      count_max     = 6
      count_default = 2
      template "hinge_#_y" {
        kind           = "float"
        auto           = true
        default_auto   = true
        active         = true
        default_active = true
        calc           = "hinge_position"
      }
    }
  }
}
`

// TestCoreExecution_MultiInstance_FollowsCountAndInputs validates that
// template instances are expanded, recomputed and ordered as the instance
// count and their shared inputs change.
func TestCoreExecution_MultiInstance_FollowsCountAndInputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// --- Arrange ---
	result := testutil.RunIntegrationTest(t, map[string]string{"door.hcl": doorHCL})
	require.NoError(t, result.Err)
	testutil.AssertNumber(t, result, "door", "hinge_0_y", 150)
	testutil.AssertNumber(t, result, "door", "hinge_1_y", 1950)

	// --- Act ---
	var order []string
	testutil.Do(t, result, "door", func(s *session.Session) error {
		if _, err := s.SetCount(ctx, "hinges", 4); err != nil {
			return err
		}
		if _, err := s.Set(ctx, "L", cty.NumberIntVal(2400), store.SourceManual); err != nil {
			return err
		}
		order = s.ActiveOrder()
		return nil
	})

	// --- Assert ---
	for i, want := range []float64{150, 850, 1550, 2250} {
		testutil.AssertNumber(t, result, "door", []string{"hinge_0_y", "hinge_1_y", "hinge_2_y", "hinge_3_y"}[i], want)
	}
	assert.Equal(t, []string{"hinge_0_y", "hinge_1_y", "hinge_2_y", "hinge_3_y"}, order)

	// Shrinking drops the surplus instances from the order.
	testutil.Do(t, result, "door", func(s *session.Session) error {
		_, err := s.SetCount(ctx, "hinges", 1)
		order = s.ActiveOrder()
		return err
	})
	assert.Equal(t, []string{"hinge_0_y"}, order)
	testutil.AssertNumber(t, result, "door", "hinge_0_y", 1200)
}
