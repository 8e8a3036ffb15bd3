package guardlock

import (
	"sync"
	"sync/atomic"
	"time"
	_ "unsafe" // for linkname
)

// RWLocker is the reader-writer primitive a lock wraps.
//
// Implementations provide standard reader-writer exclusivity: any number of
// concurrent RLock holders, or exactly one Lock holder. Fairness and wake
// order are entirely up to the implementation. *sync.RWMutex and
// *SpinRWLock both satisfy it.
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

var (
	_ RWLocker = (*sync.RWMutex)(nil)
	_ RWLocker = (*SpinRWLock)(nil)
)

// SpinRWLock is a spin-based Reader-Writer lock backed by a uintptr.
// It is writer-preferred to prevent reader starvation.
//
// It suits read-heavy values whose critical sections are a few memory
// accesses. Holding it across blocking calls burns CPU on every waiter;
// prefer the default *sync.RWMutex there.
//
// The zero value is an unlocked lock.
type SpinRWLock uintptr

const (
	rwWriteMask = 1
	rwReadShift = 2
	rwReadUnit  = 1 << rwReadShift
	rwFreeState = 2 // initialized, no writer, no readers
)

// Lock acquires the write lock.
// It spins until the lock is free.
//
//go:nosplit
func (l *SpinRWLock) Lock() {
	var spins int
	for {
		// Taking the write bit blocks new readers.
		s := atomic.LoadUintptr((*uintptr)(l))
		if s&rwWriteMask == 0 {
			if atomic.CompareAndSwapUintptr((*uintptr)(l), s, s|rwWriteMask) {
				// Wait for the readers already inside to drain.
				for atomic.LoadUintptr((*uintptr)(l))>>rwReadShift != 0 {
					delay(&spins)
				}
				return
			}
		}
		delay(&spins)
	}
}

// Unlock releases the write lock.
//
//go:nosplit
func (l *SpinRWLock) Unlock() {
	atomic.StoreUintptr((*uintptr)(l), rwFreeState)
}

// RLock acquires a read lock.
//
//go:nosplit
func (l *SpinRWLock) RLock() {
	var spins int
	for {
		s := atomic.LoadUintptr((*uintptr)(l))
		if s&rwWriteMask == 0 {
			if atomic.CompareAndSwapUintptr((*uintptr)(l), s, s+rwReadUnit) {
				return
			}
		}
		delay(&spins)
	}
}

// RUnlock releases a read lock.
//
//go:nosplit
func (l *SpinRWLock) RUnlock() {
	atomic.AddUintptr((*uintptr)(l), ^uintptr(rwReadUnit-1))
}

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	// A short sleep backs off far better than Gosched under heavy
	// contention. 500µs follows folly's Sleeper.
	time.Sleep(500 * time.Microsecond)
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//goland:noinspection ALL
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//goland:noinspection ALL
func runtime_doSpin()
