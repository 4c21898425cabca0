// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dilugrid/internal/app"
	"github.com/specialistvlad/dilugrid/internal/platform"
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
	LogOutput string
	Err       error
	App       *app.App
	Dir       string
}

// Path returns name resolved inside the harness directory.
func (r *HarnessResult) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, cfg app.Config, modules ...platform.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, cfg, modules...)
}

// RunIntegrationTestWithContext writes files into a temporary directory,
// resolves the relative paths of cfg against it, and runs the app. Logs are
// printed when DILUGRID_TEST_LOGS is "true".
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config, modules ...platform.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(tmpDir, p)
	}
	cfg.ProtocolPath = resolve(cfg.ProtocolPath)
	cfg.LabwarePath = resolve(cfg.LabwarePath)
	cfg.JournalPath = resolve(cfg.JournalPath)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	logBuffer := &SafeBuffer{}
	result := &HarnessResult{Dir: tmpDir}
	defer func() {
		result.LogOutput = logBuffer.String()
		if os.Getenv("DILUGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
		}
	}()

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		result.Err = err
		return result
	}
	testApp, err := app.NewApp(logBuffer, appConfig, modules...)
	if err != nil {
		result.Err = err
		return result
	}
	result.App = testApp
	result.Err = testApp.Run(ctx)
	return result
}
