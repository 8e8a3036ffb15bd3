package guardlock

import (
	"fmt"

	"github.com/llxisdsh/pb"
)

// GuardGroup is a keyed family of GuardLocks, each created on first use.
//
// Every key gets its own lock, value and poison state, so a panic under
// one key leaves the others usable. A poisoned key can be dropped with
// Forget and starts over from init on its next use.
//
// Usage:
//
//	accounts := guardlock.NewGuardGroup(func(id string) Balance {
//		return Balance{}
//	})
//
//	g, err := accounts.Write("alice")
//	if err != nil {
//		return err
//	}
//	defer g.Audit()
//	g.Get().Cents += 100
//	g.Release()
type GuardGroup[K comparable, T any] struct {
	_       noCopy
	init    func(K) T
	name    string
	options []func(*Config)
	m       pb.MapOf[K, *GuardLock[T]]
}

// NewGuardGroup returns a group whose locks start from init(key). The
// options apply to every lock; each lock is named after the group and key.
func NewGuardGroup[K comparable, T any](
	init func(K) T,
	options ...func(*Config),
) *GuardGroup[K, T] {
	return &GuardGroup[K, T]{
		init:    init,
		name:    newConfig(options).name,
		options: options,
	}
}

// Lock returns the lock for k, creating it if needed.
//
// init runs outside the map, so it may use the group itself. When two
// goroutines race to create the same key both may call init; only one
// lock is kept.
func (g *GuardGroup[K, T]) Lock(k K) *GuardLock[T] {
	if l, ok := g.m.Load(k); ok {
		return l
	}
	fresh := g.newLock(k)
	l, _ := g.m.ProcessEntry(
		k,
		func(e *pb.EntryOf[K, *GuardLock[T]]) (*pb.EntryOf[K, *GuardLock[T]], *GuardLock[T], bool) {
			if e != nil {
				return e, e.Value, true
			}
			return &pb.EntryOf[K, *GuardLock[T]]{Value: fresh}, fresh, false
		},
	)
	return l
}

// Read acquires a shared hold on the lock for k.
func (g *GuardGroup[K, T]) Read(k K) (*ReadGuard[T], error) {
	return g.Lock(k).Read()
}

// Write acquires an exclusive hold on the lock for k.
func (g *GuardGroup[K, T]) Write(k K) (*WriteGuard[T], error) {
	return g.Lock(k).Write()
}

// Forget drops the lock for k. Guards already acquired from it stay valid
// and must still be released; new acquisitions get a fresh lock.
func (g *GuardGroup[K, T]) Forget(k K) {
	g.m.Delete(k)
}

func (g *GuardGroup[K, T]) newLock(k K) *GuardLock[T] {
	options := make([]func(*Config), 0, len(g.options)+1)
	options = append(options, g.options...)
	options = append(options, WithName(fmt.Sprintf("%s[%v]", g.name, k)))
	var v T
	if g.init != nil {
		v = g.init(k)
	}
	return NewGuardLock(v, options...)
}
