// Package guardlock wraps a reader-writer lock around a single value and
// offers two ways to reach it.
//
// ClosureLock is the default path. Read and Write run a callback under the
// lock and the hold never outlives the callback:
//
//	counter := guardlock.NewClosureLock(0)
//	counter.Write(func(n *int) { *n++ })
//	n := guardlock.ReadWith(counter, func(n *int) int { return *n })
//
// GuardLock returns the hold to the caller as a guard, for control flow that
// a callback would obscure. Every guard must be released explicitly.
// Deferring Audit right after the acquisition turns a forgotten Release into
// an immediate fault and a panic while holding into poisoning:
//
//	g, err := cfg.Write()
//	if err != nil {
//		return err // errors.Is(err, guardlock.ErrPoisoned)
//	}
//	defer g.Audit()
//	g.Get().Retries++
//	g.Release()
//
// Poisoning requires defer g.Audit(). Go has no unwinding hook on the guard
// itself, so a holder that panics without a deferred Audit does not poison
// the lock: its guard stays held until it is garbage collected and is then
// reported as a leak, and a leak handler that returns lets later holders see
// whatever the panicking holder left behind.
//
// A guard that is garbage collected while still held raises the same fault
// from the runtime's cleanup goroutine. Automatic release on scope exit is
// what this package treats as the bug: a hold should end where the code says
// it ends, not wherever the guard happens to become unreachable.
//
// Neither type detects deadlocks. Acquiring the same lock twice on one
// goroutine, either kind inside either kind where a writer is involved,
// blocks forever, exactly as the underlying RWLocker does.
package guardlock
