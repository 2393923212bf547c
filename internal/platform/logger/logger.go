// Package logger provides logging utilities for the proxy pipeline.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Logger provides a function for logging messages with key-value pairs.
type Logger func(ctx context.Context, msg string, args ...any)

// New returns a standard logger that writes timestamped lines to stderr.
func New() Logger {
	return write("INFO")
}

// Debug returns a diagnostic logger that writes to stderr when verbose is
// set and discards everything otherwise.
func Debug(verbose bool) Logger {
	if !verbose {
		return Discard()
	}
	return write("DEBUG")
}

// Discard returns a logger that discards all output.
func Discard() Logger {
	return func(ctx context.Context, msg string, args ...any) {}
}

func write(level string) Logger {
	return func(ctx context.Context, msg string, args ...any) {
		fmt.Fprintf(os.Stderr, "%s | %-5s | %s", time.Now().Format("15:04:05"), level, msg)
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				fmt.Fprintf(os.Stderr, " %v[%v]", args[i], args[i+1])
			}
		}
		fmt.Fprintln(os.Stderr)
	}
}
