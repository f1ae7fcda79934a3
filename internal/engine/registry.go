package engine

import (
	"context"
	"sync"
)

// Dispatcher runs one test-mode family against e's configuration and
// backend, writing its results into e via MergeResults. Test-mode
// packages register their dispatchers by test-type name at init time
// (the same pattern image.RegisterFormat or sql.Register use) so this
// package never needs to import them back.
type Dispatcher func(ctx context.Context, e *EngineContext) error

var (
	registryMu sync.RWMutex
	registry   = map[string]Dispatcher{}
)

// Register associates a Dispatcher with a test-type name. Calling
// Register twice for the same name replaces the previous entry.
func Register(testType string, d Dispatcher) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[testType] = d
}

func lookup(testType string) (Dispatcher, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[testType]
	return d, ok
}
