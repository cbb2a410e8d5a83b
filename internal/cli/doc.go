// Package cli parses command-line arguments, validates user input and
// defines the process exit codes. It translates CLI flags into app.Config.
package cli
