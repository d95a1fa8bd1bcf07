package goroutine

import (
	"fmt"
	"runtime/debug"
)

// Logger is the minimal interface needed for panic reporting.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler launches goroutines that survive panics.
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler creates a handler reporting through the given logger.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo runs fn in a goroutine with panic recovery.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("panic in goroutine: %v\nstack trace:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// stderrLogger is the fallback used before the application logger exists.
type stderrLogger struct{}

func (l *stderrLogger) Errorf(format string, args ...interface{}) {
	fmt.Printf("[ERROR] "+format+"\n", args...)
}

// DefaultRecoveryHandler is the package-level handler.
var DefaultRecoveryHandler = NewRecoveryHandler(&stderrLogger{})

// SafeGo runs fn on the default handler.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}
