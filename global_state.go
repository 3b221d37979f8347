package flagcore

import "sync"

// globalState holds process-wide singletons. Mutate it only through the
// accessors below, under the lock.
type globalState struct {
	logger *OutputLogger
	mu     sync.RWMutex
}

var global globalState

// Logger returns the process-wide OutputLogger, or a disabled stand-in if
// none has been installed yet.
func Logger() *OutputLogger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.logger == nil {
		return &OutputLogger{}
	}
	return global.logger
}

// InitializeGlobalOutputLogger installs the process-wide OutputLogger used
// by the package-level Initialize/CheckGate/... helpers.
func InitializeGlobalOutputLogger(options OutputLoggerOptions) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = &OutputLogger{options: options}
	global.logger.initialize()
}
