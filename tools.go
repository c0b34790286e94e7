//go:build tools
// +build tools

// Package tools pins Go-based tools invoked via `go generate` (mockgen).
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
