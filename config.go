package guardlock

import (
	"sync"
)

// ============================================================================
// Configuration
// ============================================================================

// Config defines configurable options for lock construction.
// Both ClosureLock and GuardLock accept the same options; the leak and stack
// settings only matter to GuardLock, since closure access never hands out a
// guard.
type Config struct {
	// name identifies the lock in log lines and fault messages.
	// Empty names are reported as "unnamed".
	name string

	// newLocker builds the underlying reader-writer primitive.
	// If nil, a *sync.RWMutex is used.
	newLocker func() RWLocker

	// leakHandler receives the fault raised when a guard is reclaimed, or
	// leaves its audited scope, without an explicit Release. If nil, the
	// fault is logged at CRITICAL and raised as a panic.
	leakHandler func(*UnreleasedGuardError)

	// acquireStacks records the acquiring goroutine's stack on every guard
	// so that a fault can point at the call site that leaked it.
	// It costs a debug.Stack call per acquisition.
	acquireStacks bool
}

// WithName names the lock for diagnostics.
func WithName(name string) func(*Config) {
	return func(c *Config) {
		c.name = name
	}
}

// WithLocker configures the lock to use the primitive returned by
// newLocker. Passing nil keeps the default *sync.RWMutex.
//
// Usage:
//
//	l := NewGuardLock(cfg, WithLocker(func() RWLocker {
//		return new(myTracingRWMutex)
//	}))
func WithLocker(newLocker func() RWLocker) func(*Config) {
	return func(c *Config) {
		c.newLocker = newLocker
	}
}

// WithSpinLocker configures the lock to use a SpinRWLock.
func WithSpinLocker() func(*Config) {
	return WithLocker(func() RWLocker {
		return new(SpinRWLock)
	})
}

// WithLeakHandler replaces the default fatal handling of unreleased guards.
//
// The handler runs either on the goroutine that deferred Audit or on the
// runtime's cleanup goroutine, never concurrently for the same guard, and
// at most once per guard. The default handler panics; a replacement that
// returns lets the program continue, which is only sensible for tests and
// for production telemetry that crashes by other means.
func WithLeakHandler(h func(*UnreleasedGuardError)) func(*Config) {
	return func(c *Config) {
		c.leakHandler = h
	}
}

// WithAcquireStacks captures the acquiring stack on every guard.
func WithAcquireStacks() func(*Config) {
	return func(c *Config) {
		c.acquireStacks = true
	}
}

func newConfig(options []func(*Config)) *Config {
	c := &Config{}
	for _, o := range options {
		if o != nil {
			o(c)
		}
	}
	if c.name == "" {
		c.name = "unnamed"
	}
	if c.leakHandler == nil {
		c.leakHandler = defaultLeakHandler
	}
	return c
}

func (c *Config) locker() RWLocker {
	if c.newLocker != nil {
		if l := c.newLocker(); l != nil {
			return l
		}
	}
	return new(sync.RWMutex)
}
