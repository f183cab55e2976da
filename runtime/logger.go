package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/linker"
)

var (
	log   *zap.Logger
	logMu sync.RWMutex
)

func logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// SetLogger sets the logger for context lifecycle events and hands named
// children of it to the engine and linker packages. nil silences all three.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	log = l
	logMu.Unlock()

	if l == nil {
		engine.SetLogger(nil)
		linker.SetLogger(nil)
		return
	}
	engine.SetLogger(l.Named("engine"))
	linker.SetLogger(l.Named("linker"))
}
