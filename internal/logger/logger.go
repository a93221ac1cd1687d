// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.RWMutex
	root = newRoot()
)

func newRoot() hclog.Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "melodyhub",
		Level:      hclog.LevelFromString(level),
		JSONFormat: os.Getenv("LOG_FORMAT") == "json",
	})
}

// SetLevel changes the level of the process-wide logger.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(hclog.LevelFromString(level))
}

// Named returns a sub-logger scoped to a component name.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// Debug logs at debug level. Args are alternating key/value pairs.
func Debug(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Debug(msg, args...)
}

// Info logs at info level. Args are alternating key/value pairs.
func Info(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Info(msg, args...)
}

// Warn logs at warn level. Args are alternating key/value pairs.
func Warn(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Warn(msg, args...)
}

// Error logs at error level. Args are alternating key/value pairs.
func Error(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Error(msg, args...)
}
