package integration_tests

import (
	"testing"

	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorHandling_InvalidDefinitions_AreRejected validates that broken
// definitions stop the app at startup with an error naming the cause.
func TestErrorHandling_InvalidDefinitions_AreRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		files   map[string]string
		wantIs  error
		wantMsg string
	}{
		{
			name:    "hcl syntax error",
			files:   map[string]string{"main.hcl": "tab \"door\" {\n  section \"s\" {\n"},
			wantMsg: "failed to load configuration",
		},
		{
			name:    "yaml unknown field",
			files:   map[string]string{"main.yaml": "tabs:\n  - id: door\n    colour: red\n"},
			wantMsg: "colour",
		},
		{
			name: "cyclic formulas",
			files: map[string]string{"main.hcl": `
				tab "door" {
				  section "s" {
				    parameter "a" {
				      kind    = "float"
				      auto    = true
				      formula = "param.b + 1"
				    }
				    parameter "b" {
				      kind    = "float"
				      auto    = true
				      formula = "param.a + 1"
				    }
				  }
				}
			`},
			wantIs: engineerr.ErrCyclicDependency,
		},
		{
			name: "unknown rule",
			files: map[string]string{"main.hcl": `
				tab "door" {
				  section "s" {
				    parameter "a" {
				      kind = "float"
				      auto = true
				      calc = "does_not_exist"
				    }
				  }
				}
			`},
			wantIs: engineerr.ErrSchema,
		},
		{
			name: "formula reads an undeclared key",
			files: map[string]string{"main.hcl": `
				tab "door" {
				  section "s" {
				    parameter "a" {
				      kind    = "float"
				      auto    = true
				      formula = "param.missing * 2"
				    }
				  }
				}
			`},
			wantIs: engineerr.ErrSchema,
		},
		{
			name: "tab defined in both formats",
			files: map[string]string{
				"a.hcl":  "tab \"door\" {}\n",
				"b.yaml": "tabs:\n  - id: door\n",
			},
			wantMsg: "more than once",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Act ---
			result := testutil.RunIntegrationTest(t, tc.files)

			// --- Assert ---
			require.Error(t, result.Err)
			assert.Nil(t, result.App)
			if tc.wantIs != nil {
				assert.ErrorIs(t, result.Err, tc.wantIs)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, result.Err.Error(), tc.wantMsg)
			}
		})
	}
}
