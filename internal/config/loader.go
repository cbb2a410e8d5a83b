package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// fileRoot mirrors the top-level blocks of a config file.
type fileRoot struct {
	Engine *engineBlock `hcl:"engine,block"`
	Render *renderBlock `hcl:"render,block"`
	Server *serverBlock `hcl:"server,block"`
	Log    *logBlock    `hcl:"log,block"`
}

type engineBlock struct {
	Kind          hcl.Expression `hcl:"kind,optional"`
	WasmPath      *string        `hcl:"wasm_path,optional"`
	Binary        *string        `hcl:"binary,optional"`
	ScratchDir    *string        `hcl:"scratch_dir,optional"`
	Timeout       hcl.Expression `hcl:"timeout,optional"`
	RenderFlags   []string       `hcl:"render_flags,optional"`
	ValidateFlags []string       `hcl:"validate_flags,optional"`
}

type renderBlock struct {
	Debounce hcl.Expression `hcl:"debounce,optional"`
}

type serverBlock struct {
	Listen *string `hcl:"listen,optional"`
}

type logBlock struct {
	Level  hcl.Expression `hcl:"level,optional"`
	Format hcl.Expression `hcl:"format,optional"`
}

// Load reads the file at path and applies it over Default.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading configuration.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(src, path, os.Environ())
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.", "engine", cfg.Engine.Kind, "listen", cfg.Server.Listen, "debounce", cfg.Render.Debounce)
	return cfg, nil
}

// Parse decodes src. environ has the os.Environ form and backs the env
// object.
func Parse(src []byte, filename string, environ []string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envObject(environ)},
	}
	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalCtx, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}

	cfg := Default()
	diags = root.apply(cfg, evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, diags)
	}
	return cfg, nil
}

func envObject(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}

func (r *fileRoot) apply(cfg *Config, evalCtx *hcl.EvalContext) hcl.Diagnostics {
	var diags hcl.Diagnostics
	if e := r.Engine; e != nil {
		diags = append(diags, setChoice(&cfg.Engine.Kind, e.Kind, evalCtx, choice{
			summary: "Invalid engine kind",
			want:    fmt.Sprintf("Engine kind must be %q or %q", KindWasm, KindProcess),
			valid:   func(s string) bool { return s == KindWasm || s == KindProcess },
		})...)
		setString(&cfg.Engine.WasmPath, e.WasmPath)
		setString(&cfg.Engine.Binary, e.Binary)
		setString(&cfg.Engine.ScratchDir, e.ScratchDir)
		diags = append(diags, setDuration(&cfg.Engine.Timeout, e.Timeout, evalCtx)...)
		if e.RenderFlags != nil {
			cfg.Engine.RenderFlags = e.RenderFlags
		}
		if e.ValidateFlags != nil {
			cfg.Engine.ValidateFlags = e.ValidateFlags
		}
	}
	if r.Render != nil {
		diags = append(diags, setDuration(&cfg.Render.Debounce, r.Render.Debounce, evalCtx)...)
	}
	if r.Server != nil {
		setString(&cfg.Server.Listen, r.Server.Listen)
	}
	if l := r.Log; l != nil {
		diags = append(diags, setChoice(&cfg.Log.Level, l.Level, evalCtx, choice{
			summary: "Invalid log level",
			want:    `Log level must be "debug", "info", "warn" or "error"`,
			valid:   ValidLogLevel,
		})...)
		diags = append(diags, setChoice(&cfg.Log.Format, l.Format, evalCtx, choice{
			summary: "Invalid log format",
			want:    fmt.Sprintf("Log format must be %q or %q", FormatText, FormatJSON),
			valid:   ValidLogFormat,
		})...)
	}
	return diags
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// stringExpr evaluates an optional string attribute. ok is false when the
// attribute is absent or invalid.
func stringExpr(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, bool, hcl.Diagnostics) {
	if expr == nil {
		return "", false, nil
	}
	v, diags := expr.Value(evalCtx)
	if diags.HasErrors() || v.IsNull() {
		return "", false, diags
	}
	var s string
	if d := gohcl.DecodeExpression(expr, evalCtx, &s); d.HasErrors() {
		return "", false, d
	}
	return s, true, nil
}

// choice describes the accepted values of an enumerated string attribute.
type choice struct {
	summary string
	want    string
	valid   func(string) bool
}

func setChoice(dst *string, expr hcl.Expression, evalCtx *hcl.EvalContext, c choice) hcl.Diagnostics {
	s, ok, diags := stringExpr(expr, evalCtx)
	if !ok {
		return diags
	}
	if !c.valid(s) {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  c.summary,
			Detail:   fmt.Sprintf("%s, got %q.", c.want, s),
			Subject:  expr.Range().Ptr(),
		}}
	}
	*dst = s
	return nil
}

func setDuration(dst *time.Duration, expr hcl.Expression, evalCtx *hcl.EvalContext) hcl.Diagnostics {
	s, ok, diags := stringExpr(expr, evalCtx)
	if !ok {
		return diags
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid duration",
			Detail:   fmt.Sprintf("%q is not a valid non-negative duration such as \"1500ms\" or \"60s\".", s),
			Subject:  expr.Range().Ptr(),
		}}
	}
	*dst = d
	return nil
}
