// Package testutil provides helpers shared by package tests: test-scoped
// contexts, a scripted draft generator and a controllable clock.
package testutil

import (
	"context"
	"testing"
)

// TestContext returns a context that is canceled when the test ends, so
// runner calls left blocked by a failing assertion don't leak.
func TestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx
}
