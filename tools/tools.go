//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// They are installed with `go install` and are not tracked in go.mod.
package tools

// Development tools (install via `go install`):
//
// mockgen - regenerates internal/mocks from internal/ports
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Usage:   go generate ./internal/mocks
//
// golangci-lint - the nolint directives in this module target it
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
//
// redis-server - integration tests under internal/adapters/redis and
// internal/testutil skip unless one answers on REDIS_ADDR or localhost:6379;
// set TEST_REQUIRE_REDIS=1 to fail instead of skipping
