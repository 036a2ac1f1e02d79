package common

import (
	"fmt"
	"runtime"
)

// GetStackTrace returns the stack trace of the calling goroutine
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// RecoverAndLog is intended for use in deferred calls at goroutine entry
// points; it converts a panic into an error value for the caller to log.
func RecoverAndLog(name string) error {
	if r := recover(); r != nil {
		return fmt.Errorf("panic in %s: %v\n%s", name, r, GetStackTrace())
	}
	return nil
}
