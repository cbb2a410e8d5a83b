// Package config loads the scadlive HCL configuration file.
//
// Every block is optional. Values missing from the file keep the defaults
// returned by Default, and expressions may read the process environment
// through the env object, for example `wasm_path = env.SCADLIVE_WASM`.
package config
