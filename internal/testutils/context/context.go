package context

import (
	"context"
	"testing"
	"time"
)

// WithTest returns a context which is cancelled when the test ends.
//
// If the test has a deadline, the context is done 1 second before it,
// to be able to clean-up resources.
func WithTest(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	if deadline, ok := t.Deadline(); ok {
		dctx, dcancel := context.WithDeadline(ctx, deadline.Add(-time.Second))
		t.Cleanup(dcancel)
		ctx = dctx
	}
	t.Cleanup(cancel)
	return ctx
}
