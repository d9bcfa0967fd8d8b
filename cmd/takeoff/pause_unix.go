//go:build !windows

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
)

// watchPause toggles gate on every SIGUSR1 until ctx is done or the returned
// stop function is called.
func watchPause(ctx context.Context, gate *progress.Gate, out io.Writer) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sig:
				if gate.Toggle() {
					fmt.Fprintln(out, "⏸ Paused (send SIGUSR1 again to resume)")
				} else {
					fmt.Fprintln(out, "▶ Resumed")
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}
