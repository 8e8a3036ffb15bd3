package guardlock

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// ErrPoisoned matches every *PoisonError via errors.Is.
	ErrPoisoned = errors.ConstError("lock poisoned")

	// ErrUnreleasedGuard matches every *UnreleasedGuardError via errors.Is.
	ErrUnreleasedGuard = errors.ConstError("guard reclaimed without release")

	// ErrReleased is the panic value, wrapped, of any use of a guard after
	// its Release.
	ErrReleased = errors.ConstError("guard already released")
)

// GuardKind tells read guards from write guards.
type GuardKind uint8

const (
	ReadKind GuardKind = iota + 1
	WriteKind
)

func (k GuardKind) String() string {
	switch k {
	case ReadKind:
		return "read"
	case WriteKind:
		return "write"
	default:
		return fmt.Sprintf("GuardKind(%d)", uint8(k))
	}
}

// PoisonError is returned by GuardLock acquisitions when a previous holder
// panicked while holding the lock.
//
// The protected value may no longer satisfy its invariants. Callers that
// can cope with that recover access through Into; everyone else treats the
// lock as permanently broken. No hold is outstanding while the error is
// in flight, so dropping it is always safe.
type PoisonError[G any] struct {
	name    string
	kind    GuardKind
	acquire func() G
}

func (e *PoisonError[G]) Error() string {
	return fmt.Sprintf("guardlock: %s lock %q poisoned by a panicking holder", e.kind, e.name)
}

// Is reports whether target is ErrPoisoned.
func (e *PoisonError[G]) Is(target error) bool {
	return target == ErrPoisoned
}

// Kind is the kind of hold whose acquisition failed.
func (e *PoisonError[G]) Kind() GuardKind {
	return e.kind
}

// Into acquires the hold that failed, ignoring the poison, and returns its
// guard. It blocks like the original acquisition did. The returned guard
// carries the usual obligation to be released.
func (e *PoisonError[G]) Into() G {
	return e.acquire()
}

// UnreleasedGuardError describes a guard that was reclaimed, or left its
// audited scope, without an explicit Release.
//
// It signals a bug at the acquiring call site. It is delivered to the lock's
// leak handler rather than returned, and the default handler panics with it.
type UnreleasedGuardError struct {
	// Kind is the kind of the leaked guard.
	Kind GuardKind
	// Lock is the name of the lock the guard was acquired from.
	Lock string
	// Reclaimed is true when the garbage collector found the guard, false
	// when a deferred Audit did.
	Reclaimed bool
	// Stack is the acquiring goroutine's stack, if WithAcquireStacks was set.
	Stack []byte
}

func (e *UnreleasedGuardError) Error() string {
	how := "left its scope"
	if e.Reclaimed {
		how = "was reclaimed"
	}
	msg := fmt.Sprintf("guardlock: %s guard on lock %q %s without Release", e.Kind, e.Lock, how)
	if len(e.Stack) > 0 {
		msg += "; acquired by:\n" + string(e.Stack)
	}
	return msg
}

// Unwrap lets errors.Is match ErrUnreleasedGuard.
func (e *UnreleasedGuardError) Unwrap() error {
	return ErrUnreleasedGuard
}
