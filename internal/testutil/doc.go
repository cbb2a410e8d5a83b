// Package testutil holds shared fixtures for package tests: a scriptable fake
// compiler engine, mesh fixtures and a goroutine-safe log buffer.
package testutil
