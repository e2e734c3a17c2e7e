package integration_tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLIBehavior_DisplaysHelp validates that --help lists the subcommands
// and exits cleanly without loading any definitions.
func TestCLIBehavior_DisplaysHelp(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	err := cli.Execute(context.Background(), []string{"--help"}, &out, &errOut)

	require.NoError(t, err)
	for _, want := range []string{"validate", "eval", "states", "watch", "--config"} {
		assert.Contains(t, out.String(), want)
	}
}

// TestCLIBehavior_ConfigMerges validates that several --config paths are
// merged into one set of tabs.
func TestCLIBehavior_ConfigMerges(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "door.hcl"), []byte(`
tab "door" {
  section "frame" {
    parameter "L" {
      kind    = "float"
      default = 2000
    }
  }
}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "gate.yaml"), []byte(`
tabs:
  - id: gate
    sections:
      - id: frame
        parameters:
          - key: L
            kind: float
            default: 3000
`), 0o600))

	var out, errOut bytes.Buffer
	err := cli.Execute(context.Background(), []string{"validate", "-c", dirA, "-c", dirB}, &out, &errOut)

	require.NoError(t, err, errOut.String())
	assert.Equal(t, "door: 1 parameters, 0 active\ngate: 1 parameters, 0 active\nOK\n", out.String())
}
