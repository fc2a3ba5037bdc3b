// Package logger provides verbose logging for the TankFinder CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow a crawl. An optional
// append-only log file receives every message regardless of verbosity.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	sink    io.Writer
	now     = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetSink sets the log file writer. Pass nil to disable it.
func SetSink(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
}

// OpenFile opens path for appending and installs it as the sink.
// The returned func closes the file and removes the sink.
func OpenFile(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	SetSink(f)
	return func() error {
		SetSink(nil)
		return f.Close()
	}, nil
}

// write emits one line. Caller must hold the read lock.
func write(show bool, prefix, format string, args ...any) {
	line := fmt.Sprintf(prefix+format, args...)
	if show {
		fmt.Fprintln(output, line)
	}
	if sink != nil {
		fmt.Fprintf(sink, "%s %s\n", now().UTC().Format(time.RFC3339), line)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write(verbose, "[DEBUG] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
	if sink != nil {
		fmt.Fprintf(sink, "%s === %s ===\n", now().UTC().Format(time.RFC3339), name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write(verbose, "[INFO] ", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write(verbose, "[WARN] ", format, args...)
}

// Error always prints.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	write(true, "[ERROR] ", format, args...)
}
