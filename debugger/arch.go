package debugger

import (
	"sync"

	"github.com/wnxd/memdbg/console"
)

type DbgCtor func(console.Console, Options) (Debugger, error)

var (
	dbgMu  sync.RWMutex
	dbgMap = make(map[string]DbgCtor)
)

// Register binds a dialect name to the constructor of its memory facade.
func Register(dialect string, ctor DbgCtor) bool {
	dbgMu.Lock()
	defer dbgMu.Unlock()
	if _, ok := dbgMap[dialect]; ok {
		return false
	}
	dbgMap[dialect] = ctor
	return true
}

func lookup(dialect string) (DbgCtor, bool) {
	dbgMu.RLock()
	defer dbgMu.RUnlock()
	ctor, ok := dbgMap[dialect]
	return ctor, ok
}
