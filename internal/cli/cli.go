package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/scadlive/internal/app"
	"github.com/specialistvlad/scadlive/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("scadlive", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
scadlive - Live preview server for parametric OpenSCAD models.

Usage:
  scadlive [options] [CONFIG]

Arguments:
  CONFIG
    Optional path to an HCL configuration file (scadlive.hcl).

Modes:
  (default)          Serve the live preview over socket.io.
  -watch FILE        Re-render FILE on every save and print the results.
  -check FILE        Render FILE once; exit status 1 if it fails.
  -push FILE         Send FILE to the server given by -server and print the result.

Options:
`)
		flagSet.PrintDefaults()
	}

	listenFlag := flagSet.String("listen", "", "Address for the preview server, e.g. ':8080'. Overrides the config file.")
	watchFlag := flagSet.String("watch", "", "Source file to watch.")
	checkFlag := flagSet.String("check", "", "Source file to render once.")
	pushFlag := flagSet.String("push", "", "Source file to push to a running server.")
	serverFlag := flagSet.String("server", "", "Preview server URL for -push, e.g. 'http://localhost:8080'.")
	engineFlag := flagSet.String("engine", "", "Compiler engine. Options: 'wasm' or 'process'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "at most one CONFIG argument is allowed"}
	}

	mode := app.ModeServe
	modes := 0
	if *watchFlag != "" {
		mode = app.ModeWatch
		modes++
	}
	if *checkFlag != "" {
		mode = app.ModeCheck
		modes++
	}
	if *pushFlag != "" {
		mode = app.ModePush
		modes++
	}
	if modes > 1 {
		return nil, false, &ExitError{Code: 2, Message: "-watch, -check and -push are mutually exclusive"}
	}
	slog.Debug("Mode determined.", "mode", mode)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "" && logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	engineKind := strings.ToLower(*engineFlag)
	if engineKind != "" && engineKind != config.KindWasm && engineKind != config.KindProcess {
		return nil, false, &ExitError{Code: 2, Message: "invalid engine: must be 'wasm' or 'process'"}
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{
		ConfigPath: flagSet.Arg(0),
		Mode:       mode,
		WatchPath:  *watchFlag,
		CheckPath:  *checkFlag,
		PushPath:   *pushFlag,
		ServerURL:  *serverFlag,
		Listen:     *listenFlag,
		EngineKind: engineKind,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}
