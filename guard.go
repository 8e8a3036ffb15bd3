package guardlock

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/juju/errors"
)

// Guard states. held is the only non-terminal one.
const (
	guardHeld uint32 = iota
	guardReleased
	guardFaulted
)

// guardState is the part of a guard the cleanup can see. It must never
// point back at the guard, or the guard would never become unreachable.
type guardState struct {
	state  atomic.Uint32
	kind   GuardKind
	lock   string
	unlock func()
	poison func(GuardKind, any)
	onLeak func(*UnreleasedGuardError)
	stack  []byte
}

func (l *GuardLock[T]) newGuardState(kind GuardKind, unlock func()) *guardState {
	s := &guardState{
		kind:   kind,
		lock:   l.cfg.name,
		unlock: unlock,
		poison: l.poison,
		onLeak: l.cfg.leakHandler,
	}
	if l.cfg.acquireStacks {
		s.stack = acquireStack()
	}
	return s
}

// check panics unless the guard still holds the lock.
func (s *guardState) check() {
	if st := s.state.Load(); st != guardHeld {
		panic(s.misuse(st))
	}
}

func (s *guardState) release() {
	if !s.state.CompareAndSwap(guardHeld, guardReleased) {
		panic(s.misuse(s.state.Load()))
	}
	s.unlock()
}

func (s *guardState) misuse(st uint32) error {
	if st == guardFaulted {
		return errors.Annotatef(ErrReleased, "%s guard on lock %q used after its leak fault", s.kind, s.lock)
	}
	return errors.Annotatef(ErrReleased, "%s guard on lock %q", s.kind, s.lock)
}

// audit runs at the end of the guard's scope with the value recovered
// there. A panic while held poisons the lock and gives the hold back, then
// carries on panicking; a normal exit while held is a leak.
func (s *guardState) audit(r any) {
	if r != nil {
		if s.state.CompareAndSwap(guardHeld, guardReleased) {
			s.poison(s.kind, r)
			s.unlock()
		}
		panic(r)
	}
	s.fault(false)
}

// reclaim is the runtime cleanup attached to every guard.
func (s *guardState) reclaim() {
	s.fault(true)
}

// fault moves a held guard to faulted, gives the hold back and reports the
// leak. Only the first caller wins, so each leak is reported once.
func (s *guardState) fault(reclaimed bool) {
	if !s.state.CompareAndSwap(guardHeld, guardFaulted) {
		return
	}
	s.unlock()
	s.onLeak(&UnreleasedGuardError{
		Kind:      s.kind,
		Lock:      s.lock,
		Reclaimed: reclaimed,
		Stack:     s.stack,
	})
}

func acquireStack() []byte {
	stack := debug.Stack()
	// Trim first line "goroutine N [status]:" which can be misleading.
	if line := bytes.IndexByte(stack, '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return stack
}

// ReadGuard is an outstanding shared hold on a GuardLock.
//
// It must be released with Release. Every method other than Kind panics
// with an error wrapping ErrReleased once the guard is released.
type ReadGuard[T any] struct {
	l       *GuardLock[T]
	s       *guardState
	cleanup runtime.Cleanup
}

func newReadGuard[T any](l *GuardLock[T]) *ReadGuard[T] {
	g := &ReadGuard[T]{
		l: l,
		s: l.newGuardState(ReadKind, l.mu.RUnlock),
	}
	g.cleanup = runtime.AddCleanup(g, (*guardState).reclaim, g.s)
	return g
}

// Get returns a pointer to the protected value. The value must not be
// modified through it, and the pointer must not be used after Release.
func (g *ReadGuard[T]) Get() *T {
	g.s.check()
	return &g.l.value
}

// Load returns a copy of the protected value.
func (g *ReadGuard[T]) Load() T {
	g.s.check()
	return g.l.value
}

// Kind returns ReadKind.
func (g *ReadGuard[T]) Kind() GuardKind {
	return ReadKind
}

// Release gives the hold back. Calling it twice panics.
func (g *ReadGuard[T]) Release() {
	g.s.release()
	g.cleanup.Stop()
}

// Audit checks the guard at the end of its scope and must be called
// directly by defer:
//
//	defer g.Audit()
//
// If the deferring goroutine is panicking while the guard is held, Audit
// poisons the lock, releases the hold and re-panics with the same value.
// If the function returns normally with the guard still held, Audit raises
// the unreleased-guard fault through the lock's leak handler. After a
// Release it does nothing.
//
// Audit is the only way a panic poisons the lock. A guard whose holder
// panics without a deferred Audit stays held until it is reclaimed, and is
// then reported as a leak; the lock is not poisoned.
func (g *ReadGuard[T]) Audit() {
	g.s.audit(recover())
}

// WriteGuard is an outstanding exclusive hold on a GuardLock.
//
// It must be released with Release. Every method other than Kind panics
// with an error wrapping ErrReleased once the guard is released.
type WriteGuard[T any] struct {
	l       *GuardLock[T]
	s       *guardState
	cleanup runtime.Cleanup
}

func newWriteGuard[T any](l *GuardLock[T]) *WriteGuard[T] {
	g := &WriteGuard[T]{
		l: l,
		s: l.newGuardState(WriteKind, l.mu.Unlock),
	}
	g.cleanup = runtime.AddCleanup(g, (*guardState).reclaim, g.s)
	return g
}

// Get returns a pointer to the protected value. The pointer must not be
// used after Release.
func (g *WriteGuard[T]) Get() *T {
	g.s.check()
	return &g.l.value
}

// Load returns a copy of the protected value.
func (g *WriteGuard[T]) Load() T {
	g.s.check()
	return g.l.value
}

// Set replaces the protected value.
func (g *WriteGuard[T]) Set(v T) {
	g.s.check()
	g.l.value = v
}

// Kind returns WriteKind.
func (g *WriteGuard[T]) Kind() GuardKind {
	return WriteKind
}

// Release gives the hold back. Calling it twice panics.
func (g *WriteGuard[T]) Release() {
	g.s.release()
	g.cleanup.Stop()
}

// Audit is ReadGuard.Audit for write guards.
func (g *WriteGuard[T]) Audit() {
	g.s.audit(recover())
}
