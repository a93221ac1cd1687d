package events

import "sync"

var (
	globalMu  sync.RWMutex
	globalBus EventBus
)

// GetGlobalEventBus returns the process-wide bus, creating it on first use.
func GetGlobalEventBus() EventBus {
	globalMu.RLock()
	b := globalBus
	globalMu.RUnlock()
	if b != nil {
		return b
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBus == nil {
		globalBus = NewBus(0)
	}
	return globalBus
}

// SetGlobalEventBus replaces the process-wide bus. Used by tests.
func SetGlobalEventBus(b EventBus) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBus = b
}
