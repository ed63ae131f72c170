//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchPauseSignal toggles the scheduler on every SIGUSR1 until ctx ends.
func watchPauseSignal(ctx context.Context, toggle func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				toggle()
			}
		}
	}()
}
