package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/monitoring"
)

// SafeGo runs fn on a new goroutine, logging and counting any panic instead
// of crashing the process. done, when non-nil, is closed after fn returns or panics.
func SafeGo(name string, fn func(), done chan<- struct{}) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in ", name, ": ", r, "\n", string(debug.Stack()))
			}
			if done != nil {
				close(done)
			}
		}()
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for goroutines whose failure must stop the process.
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in ", name, ": ", r, "\n", string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}
