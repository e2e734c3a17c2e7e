// Package testutil provides the harness and fixtures shared by the
// integration tests.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/paramgrid/internal/app"
	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput *SafeBuffer
	Err       error
	App       *app.App
	// Dir is the directory the definition files were written to.
	Dir string
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, modules ...calc.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, modules...)
}

// RunIntegrationTestWithContext writes files (relative path to content) into
// a temporary directory and starts an app on it with the in-memory state
// store. Without modules the built-in rule modules are registered.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...calc.Module) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg, err := app.NewConfig(app.Config{
		ConfigPaths:  []string{dir},
		StoreBackend: app.BackendMemory,
		LogLevel:     "debug",
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp, runErr := app.NewApp(ctx, logBuffer, cfg, nil, modules...)

	t.Cleanup(func() {
		if testApp != nil {
			testApp.Close()
		}
		if os.Getenv("PARAMGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return &HarnessResult{
		LogOutput: logBuffer,
		Err:       runErr,
		App:       testApp,
		Dir:       dir,
	}
}
