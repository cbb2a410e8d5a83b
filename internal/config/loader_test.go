package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(""), "scadlive.hcl", nil)

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1500*time.Millisecond, cfg.Render.Debounce)
	assert.Equal(t, 60*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, []string{"--render"}, cfg.Engine.RenderFlags)
}

func TestParse_FullFile(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	src := `
engine {
  kind           = "process"
  wasm_path      = env.SCADLIVE_WASM
  binary         = "/usr/bin/openscad"
  timeout        = "90s"
  render_flags   = ["--render", "--backend=manifold"]
  validate_flags = ["--preview", "--check-parameters=true"]
}
render {
  debounce = "250ms"
}
server {
  listen = "127.0.0.1:9000"
}
log {
  level  = "debug"
  format = "json"
}
`
	// --- Act ---
	cfg, err := Parse([]byte(src), "scadlive.hcl", []string{"SCADLIVE_WASM=/opt/openscad.wasm", "HOME=/root"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, EngineConfig{
		Kind:          KindProcess,
		WasmPath:      "/opt/openscad.wasm",
		Binary:        "/usr/bin/openscad",
		Timeout:       90 * time.Second,
		RenderFlags:   []string{"--render", "--backend=manifold"},
		ValidateFlags: []string{"--preview", "--check-parameters=true"},
	}, cfg.Engine)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.Debounce)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestParse_PartialBlockKeepsOtherDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`engine { timeout = "0s" }`), "scadlive.hcl", nil)

	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Engine.Timeout)
	assert.Equal(t, KindWasm, cfg.Engine.Kind)
	assert.Equal(t, "openscad", cfg.Engine.Binary)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax", "engine {", "failed to parse config file"},
		{"unknown attribute", "server { port = 1 }", "failed to decode config file"},
		{"bad kind", "engine {\n  kind = \"docker\"\n}", "scadlive.hcl:2,10-18: Invalid engine kind"},
		{"bad duration", "render {\n  debounce = \"soon\"\n}", "scadlive.hcl:2,14-20: Invalid duration"},
		{"bad log level", "log {\n  level = \"loud\"\n}", "scadlive.hcl:2,11-17: Invalid log level"},
		{"bad log format", "log { format = \"xml\" }", "Invalid log format"},
		{"negative duration", "engine { timeout = \"-1s\" }", "Invalid duration"},
		{"missing env var", "engine { wasm_path = env.NOPE }", "Unsupported attribute"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tc.src), "scadlive.hcl", nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParse_LogLevelsFollowSlog(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`log { level = "WARN" }`), "scadlive.hcl", nil)

	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Log.Level)
	assert.Equal(t, FormatText, cfg.Log.Format)
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scadlive.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server { listen = ":7000" }`), 0o644))

	cfg, err := Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Listen)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))

	assert.ErrorContains(t, err, "failed to read config file")
}

func TestHandleConfig(t *testing.T) {
	t.Parallel()
	cfg := Default()

	hc := cfg.Engine.HandleConfig()

	assert.Equal(t, cfg.Engine.Timeout, hc.Timeout)
	assert.Equal(t, cfg.Engine.RenderFlags, hc.RenderFlags)
	assert.Equal(t, cfg.Render.Debounce, cfg.Render.ControllerConfig().Debounce)
}
