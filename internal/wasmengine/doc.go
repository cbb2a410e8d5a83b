// Package wasmengine loads the compiler as a WASI module under wazero.
//
// The module is compiled once when the session loads it. Every call then
// instantiates a fresh module with the scratch directory mounted at "/", so
// the compiler's global state never leaks from one call into the next.
package wasmengine
