package guardlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardGroup_Basic(t *testing.T) {
	g := NewGuardGroup(func(k string) int { return len(k) }, WithName("lengths"))
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	// Concurrent readers of one key share it.
	for range n {
		go func() {
			defer wg.Done()
			r, err := g.Read("key")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, 3, r.Load())
			time.Sleep(time.Microsecond)
			r.Release()
		}()
	}
	wg.Wait()

	require.Same(t, g.Lock("key"), g.Lock("key"))
	assert.Equal(t, "lengths[key]", g.Lock("key").Name())

	// Writer exclusion is per key.
	w, err := g.Write("key")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := g.Read("key")
		if assert.NoError(t, err) {
			r.Release()
		}
	}()
	select {
	case <-done:
		t.Fatal("Read acquired while Write held")
	case <-time.After(10 * time.Millisecond):
	}

	other, err := g.Write("other")
	require.NoError(t, err)
	assert.Equal(t, 5, other.Load())
	other.Release()

	w.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read not acquired after Release")
	}
}

func TestGuardGroup_PoisonIsPerKey(t *testing.T) {
	g := NewGuardGroup[int, int](nil)
	poisonWith(t, g.Lock(1))

	_, err := g.Read(1)
	require.ErrorIs(t, err, ErrPoisoned)

	r, err := g.Read(2)
	require.NoError(t, err)
	require.Zero(t, r.Load())
	r.Release()

	g.Forget(1)
	w, err := g.Write(1)
	require.NoError(t, err, "a forgotten key starts over")
	require.Zero(t, w.Load())
	w.Release()
}

func TestGuardGroup_ForgetKeepsOutstandingGuards(t *testing.T) {
	g := NewGuardGroup(func(k int) []int { return []int{k} })
	old := g.Lock(7)
	w, err := g.Write(7)
	require.NoError(t, err)
	g.Forget(7)

	fresh := g.Lock(7)
	require.NotSame(t, old, fresh)

	// The new lock is independent of the outstanding guard.
	r, err := g.Read(7)
	require.NoError(t, err)
	require.Equal(t, []int{7}, r.Load())
	r.Release()

	w.Set(append(w.Load(), 8))
	w.Release()
}

func TestGuardGroup_InitMayUseGroup(t *testing.T) {
	var g *GuardGroup[int, int]
	g = NewGuardGroup(func(k int) int {
		if k == 0 {
			return 0
		}
		// Creates every smaller key from inside init.
		prev := g.Lock(k - 1)
		r, err := prev.Read()
		if err != nil {
			panic(err)
		}
		defer r.Release()
		return r.Load() + 1
	})

	within(t, 5*time.Second, func() {
		r, err := g.Read(64)
		if assert.NoError(t, err) {
			assert.Equal(t, 64, r.Load())
			r.Release()
		}
	})
	require.Same(t, g.Lock(10), g.Lock(10))
}
