package guardlock

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/guardlock/internal/opt"
)

// GuardLock guards a value of type T and hands holds out as guards.
//
// Read and Write block until the hold is granted and return a guard that the
// caller must Release. Any number of read guards may be outstanding at once;
// a write guard excludes every other guard. The lock itself never checks
// which goroutine holds what; exclusivity is the RWLocker's job.
//
// A guard whose goroutine panics inside a deferred Audit poisons the lock.
// From then on every acquisition fails with a *PoisonError until
// ClearPoison is called.
//
// Guards are meant to be short-lived. Holding one across I/O, channel
// operations or other waits starves every goroutine queued on the lock.
//
// A GuardLock must be created with NewGuardLock and must not be copied after
// first use.
type GuardLock[T any] struct {
	_        noCopy
	mu       RWLocker
	poisoned atomic.Bool
	cfg      *Config
	// Keeps the poison flag, hit by every acquisition, off the value's
	// cache line.
	_     [(opt.CacheLineSize_ - unsafe.Sizeof(guardLockHeader{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte
	value T
}

// guardLockHeader mirrors the fields of GuardLock ahead of the padding.
type guardLockHeader struct {
	mu       RWLocker
	poisoned atomic.Bool
	cfg      *Config
}

// NewGuardLock returns a lock protecting value.
func NewGuardLock[T any](value T, options ...func(*Config)) *GuardLock[T] {
	cfg := newConfig(options)
	return &GuardLock[T]{
		mu:    cfg.locker(),
		cfg:   cfg,
		value: value,
	}
}

// Read acquires a shared hold.
//
// It fails without blocking if the lock is already poisoned, and fails after
// acquiring (having given the hold back) if the lock was poisoned while it
// waited. The error is always a *PoisonError[*ReadGuard[T]].
func (l *GuardLock[T]) Read() (*ReadGuard[T], error) {
	if l.poisoned.Load() {
		return nil, l.readPoisoned()
	}
	l.mu.RLock()
	if l.poisoned.Load() {
		l.mu.RUnlock()
		return nil, l.readPoisoned()
	}
	return newReadGuard(l), nil
}

// Write acquires an exclusive hold. Poisoning is reported as in Read, with
// a *PoisonError[*WriteGuard[T]].
func (l *GuardLock[T]) Write() (*WriteGuard[T], error) {
	if l.poisoned.Load() {
		return nil, l.writePoisoned()
	}
	l.mu.Lock()
	if l.poisoned.Load() {
		l.mu.Unlock()
		return nil, l.writePoisoned()
	}
	return newWriteGuard(l), nil
}

// SafeRead calls f with the value under a shared hold, or returns the
// poison error without calling f. If f panics the lock is poisoned and the
// panic continues.
func (l *GuardLock[T]) SafeRead(f func(*T)) error {
	g, err := l.Read()
	if err != nil {
		return err
	}
	defer g.Audit()
	f(g.Get())
	g.Release()
	return nil
}

// SafeWrite is SafeRead with an exclusive hold.
func (l *GuardLock[T]) SafeWrite(f func(*T)) error {
	g, err := l.Write()
	if err != nil {
		return err
	}
	defer g.Audit()
	f(g.Get())
	g.Release()
	return nil
}

// IsPoisoned reports whether a holder has panicked since the lock was
// created or last cleared.
func (l *GuardLock[T]) IsPoisoned() bool {
	return l.poisoned.Load()
}

// ClearPoison marks the lock healthy again. The caller vouches for the
// value's invariants, typically after repairing it through PoisonError.Into.
func (l *GuardLock[T]) ClearPoison() {
	if l.poisoned.CompareAndSwap(true, false) {
		logger.Debugf("lock %q: poison cleared", l.cfg.name)
	}
}

// Name returns the name given with WithName.
func (l *GuardLock[T]) Name() string {
	return l.cfg.name
}

func (l *GuardLock[T]) readPoisoned() error {
	return &PoisonError[*ReadGuard[T]]{
		name: l.cfg.name,
		kind: ReadKind,
		acquire: func() *ReadGuard[T] {
			l.mu.RLock()
			return newReadGuard(l)
		},
	}
}

func (l *GuardLock[T]) writePoisoned() error {
	return &PoisonError[*WriteGuard[T]]{
		name: l.cfg.name,
		kind: WriteKind,
		acquire: func() *WriteGuard[T] {
			l.mu.Lock()
			return newWriteGuard(l)
		},
	}
}

func (l *GuardLock[T]) poison(kind GuardKind, r any) {
	if !l.poisoned.Swap(true) {
		logger.Warningf("lock %q poisoned: %s holder panicked: %v", l.cfg.name, kind, r)
	}
}
