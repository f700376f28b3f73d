package console

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/wnxd/memdbg/console"
)

// region is a fixed capacity buffer handed between two goroutines. A zero
// ready word means empty.
type region struct {
	mu    sync.Mutex
	cond  *sync.Cond
	ready atomic.Uint32
	shut  atomic.Bool
	buf   []byte
	n     int
}

func newRegion(size int) *region {
	if size <= 0 {
		size = console.DefaultRegionSize
	}
	r := &region{buf: make([]byte, size)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *region) put(data []byte) error {
	if len(data) > len(r.buf) {
		return fmt.Errorf("%w: %d bytes, capacity %d", console.ErrRegionOverflow, len(data), len(r.buf))
	}
	r.mu.Lock()
	r.n = copy(r.buf, data)
	r.ready.Store(1)
	r.cond.Broadcast()
	r.mu.Unlock()
	return nil
}

func (r *region) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf[:r.n]...)
}

func (r *region) clear() {
	r.mu.Lock()
	clear(r.buf[:r.n])
	r.n = 0
	r.ready.Store(0)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// shutdown wakes every waiter for good.
func (r *region) shutdown() {
	r.mu.Lock()
	r.shut.Store(true)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// await blocks until the ready word equals want. It returns false if the
// region was shut down first.
func (r *region) await(want uint32, wait console.WaitStrategy) bool {
	if wait == console.WAIT_SPIN {
		for r.ready.Load() != want {
			if r.shut.Load() {
				return false
			}
			runtime.Gosched()
		}
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.ready.Load() != want {
		if r.shut.Load() {
			return false
		}
		r.cond.Wait()
	}
	return true
}
