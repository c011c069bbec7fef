package utils

import (
	"runtime/debug"
)

// RecoverFromPanic recovers from a panic and logs it with a stack trace.
// Meant to be deferred at the top of long-running entry points.
func RecoverFromPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.Error("panic in %s: %v\n%s", context, r, debug.Stack())
	}
}
