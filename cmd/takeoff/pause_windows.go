//go:build windows

package main

import (
	"context"
	"io"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
)

// watchPause is a no-op: Windows has no user signal to toggle the gate with.
func watchPause(context.Context, *progress.Gate, io.Writer) func() {
	return func() {}
}
