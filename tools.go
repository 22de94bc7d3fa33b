//go:build tools
// +build tools

// Package eduapp tracks tool dependencies invoked through go generate (mockgen).
package eduapp

import (
	_ "go.uber.org/mock/mockgen"
)
