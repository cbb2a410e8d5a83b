package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/scadlive/internal/config"
	"github.com/specialistvlad/scadlive/internal/testutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_AppliesOverridesOverFile(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	path := writeFile(t, "scadlive.hcl", `
engine { kind = "wasm" }
server { listen = ":9000" }
log    { level = "warn" }
`)
	out := &testutil.SafeBuffer{}

	// --- Act ---
	a, err := New(out, &Config{ConfigPath: path, EngineKind: "process", Listen: ":7000"})

	// --- Assert ---
	require.NoError(t, err)
	s := a.Settings()
	assert.Equal(t, config.KindProcess, s.Engine.Kind)
	assert.Equal(t, ":7000", s.Server.Listen)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestNew_BadConfigFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "scadlive.hcl", `render { debounce = "later" }`)

	_, err := New(&testutil.SafeBuffer{}, &Config{ConfigPath: path})

	assert.ErrorContains(t, err, "failed to load configuration")
	assert.ErrorContains(t, err, "Invalid duration")
}

func TestNew_BadLogLevelInFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "scadlive.hcl", `log { level = "chatty" }`)

	_, err := New(&testutil.SafeBuffer{}, &Config{ConfigPath: path})

	assert.ErrorContains(t, err, "Invalid log level")
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		lc      config.LogConfig
		want    string
		wantErr string
	}{
		{name: "json debug", lc: config.LogConfig{Level: "debug", Format: "json"}, want: `"msg":"hello"`},
		{name: "text warn+ hides info", lc: config.LogConfig{Level: "WARN", Format: "text"}, want: ""},
		{name: "bad level", lc: config.LogConfig{Level: "loud", Format: "text"}, wantErr: "invalid log level"},
		{name: "bad format", lc: config.LogConfig{Level: "info", Format: "xml"}, wantErr: "invalid log format"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			out := &testutil.SafeBuffer{}

			// --- Act ---
			logger, err := newLogger(tc.lc, out)

			// --- Assert ---
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			if tc.want == "" {
				assert.Empty(t, out.String())
				return
			}
			assert.Contains(t, out.String(), tc.want)
		})
	}
}

func TestRun_CheckRendersFile(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	src := writeFile(t, "model.scad", testutil.HoledCubeSource)
	fake := testutil.NewFakeEngine(testutil.Succeed(testutil.CubeSTL(20), 0))
	out := &testutil.SafeBuffer{}
	a, err := New(out, &Config{Mode: ModeCheck, CheckPath: src, LogLevel: "debug"}, WithLoader(&testutil.FakeLoader{Engine: fake}))
	require.NoError(t, err)

	// --- Act ---
	err = a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✅ rendered 12 triangles")
	assert.Len(t, fake.Calls(), 1)
}

func TestRun_CheckReportsLintFailure(t *testing.T) {
	t.Parallel()
	src := writeFile(t, "model.scad", "cube([10,10,10]")
	fake := testutil.NewFakeEngine(nil)
	out := &testutil.SafeBuffer{}
	a, err := New(out, &Config{Mode: ModeCheck, CheckPath: src}, WithLoader(&testutil.FakeLoader{Engine: fake}))
	require.NoError(t, err)

	err = a.Run(context.Background())

	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, out.String(), "lint failed")
	assert.Contains(t, out.String(), "1:5: error: unclosed '('")
	assert.Empty(t, fake.Calls())
}

func TestRun_CheckReportsEngineFailure(t *testing.T) {
	t.Parallel()
	src := writeFile(t, "model.scad", "cube(1);")
	a, err := New(&testutil.SafeBuffer{}, &Config{Mode: ModeCheck, CheckPath: src}, WithLoader(&testutil.FakeLoader{Err: errors.New("no wasm")}))
	require.NoError(t, err)

	err = a.Run(context.Background())

	assert.ErrorIs(t, err, ErrCheckFailed)
}

func TestRun_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	fake := testutil.NewFakeEngine(nil)
	out := &testutil.SafeBuffer{}
	a, err := New(out, &Config{Mode: ModeServe, Listen: "127.0.0.1:0", LogLevel: "debug"}, WithLoader(&testutil.FakeLoader{Engine: fake}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// --- Act ---
	go func() { done <- a.Run(ctx) }()
	require.Eventually(t, func() bool {
		logs := out.String()
		return strings.Contains(logs, "Preview server listening") && strings.Contains(logs, "Compiler engine ready")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	// --- Assert ---
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewConfig_Validation(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"serve needs nothing", Config{Mode: ModeServe}, ""},
		{"watch without file", Config{Mode: ModeWatch}, "watch mode requires"},
		{"check without file", Config{Mode: ModeCheck}, "check mode requires"},
		{"push without server", Config{Mode: ModePush, PushPath: "a.scad"}, "push mode requires"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfig(tc.cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRun_CheckDirectory(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.scad"), []byte("cube(1);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.scad"), []byte("cube(1));"), 0o644))
	fake := testutil.NewFakeEngine(testutil.Succeed(testutil.CubeSTL(1), 0))
	out := &testutil.SafeBuffer{}
	a, err := New(out, &Config{Mode: ModeCheck, CheckPath: dir}, WithLoader(&testutil.FakeLoader{Engine: fake}))
	require.NoError(t, err)

	// --- Act ---
	err = a.Run(context.Background())

	// --- Assert ---
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.ErrorContains(t, err, "bad.scad")
	assert.Contains(t, out.String(), "== "+filepath.Join(dir, "good.scad"))
	assert.Contains(t, out.String(), "✅ rendered 12 triangles")
	assert.Len(t, fake.Calls(), 1)
}
