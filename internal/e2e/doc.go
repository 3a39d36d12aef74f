// Package e2e drives the whole pipeline against a fake Riot API: sync into
// SQLite, then query the tools over HTTP. Run with `go test -tags e2e`.
package e2e
