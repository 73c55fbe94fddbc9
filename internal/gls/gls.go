package gls

import (
	"sync"

	"github.com/petermattis/goid"
)

// goroutine local storage; the map contains one entry for each goroutine that
// is started to power a coroutine frame.
//
// Virtual threads are driven by a single goroutine at a time, but separate
// runtimes may tick on separate goroutines, so the map is still guarded.
var (
	gmutex sync.RWMutex
	gstate map[G]any
)

// G is a reference to a goroutine, and provides a way
// to load, store and clear a goroutine local context.
type G int64

// Context retrieves the goroutine local storage for contexts.
func Context() G {
	return G(goid.Get())
}

// Load loads the goroutine local context.
func (g G) Load() any {
	gmutex.RLock()
	v := gstate[g]
	gmutex.RUnlock()
	return v
}

// Store stores the goroutine local context.
func (g G) Store(c any) {
	gmutex.Lock()
	if gstate == nil {
		gstate = make(map[G]any)
	}
	gstate[g] = c
	gmutex.Unlock()
}

// Clear clears the goroutine local context.
func (g G) Clear() {
	gmutex.Lock()
	delete(gstate, g)
	gmutex.Unlock()
}
