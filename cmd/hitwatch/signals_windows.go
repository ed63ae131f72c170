//go:build windows

package main

import "context"

// watchPauseSignal is a no-op: Windows has no SIGUSR1.
func watchPauseSignal(context.Context, func()) {}
