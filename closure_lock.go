package guardlock

// ClosureLock guards a value of type T behind scoped, callback-based access.
//
// The hold lives exactly as long as the callback. A panic inside the
// callback releases the hold on the way out and leaves the lock usable:
// ClosureLock never records or reports poisoning. Use GuardLock.SafeRead and
// GuardLock.SafeWrite where a panicking writer has to be noticed.
//
// The callback must not acquire the same lock again. A Write inside Read,
// or anything inside Write, blocks forever.
//
// A ClosureLock must be created with NewClosureLock and must not be copied
// after first use.
type ClosureLock[T any] struct {
	_     noCopy
	mu    RWLocker
	value T
}

// NewClosureLock returns a lock protecting value.
func NewClosureLock[T any](value T, options ...func(*Config)) *ClosureLock[T] {
	cfg := newConfig(options)
	return &ClosureLock[T]{
		mu:    cfg.locker(),
		value: value,
	}
}

// Read calls f with the value under a shared hold. f must not modify the
// value or keep the pointer after it returns.
func (l *ClosureLock[T]) Read(f func(*T)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f(&l.value)
}

// Write calls f with the value under an exclusive hold. f must not keep the
// pointer after it returns.
func (l *ClosureLock[T]) Write(f func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(&l.value)
}

// ReadWith is Read for callbacks that produce a result.
func ReadWith[T, R any](l *ClosureLock[T], f func(*T) R) R {
	var r R
	l.Read(func(v *T) {
		r = f(v)
	})
	return r
}

// WriteWith is Write for callbacks that produce a result.
func WriteWith[T, R any](l *ClosureLock[T], f func(*T) R) R {
	var r R
	l.Write(func(v *T) {
		r = f(v)
	})
	return r
}
