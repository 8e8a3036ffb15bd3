package guardlock

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llxisdsh/guardlock/internal/opt"
)

func TestSpinRWLock_Basic(t *testing.T) {
	var a int
	var rw SpinRWLock
	rw.Lock()
	a = 1
	rw.Unlock()
	rw.RLock()
	_ = a
	rw.RUnlock()
}

func TestSpinRWLock_ReadersAndWriters(t *testing.T) {
	var rw SpinRWLock
	var readers int32
	var writers int32

	loops := 1000
	if opt.Race_ {
		loops = 100
	}
	readerN := runtime.GOMAXPROCS(0)
	writerN := 2

	var wg sync.WaitGroup
	wg.Add(readerN + writerN)

	for range readerN {
		go func() {
			defer wg.Done()
			for range loops {
				rw.RLock()
				n := atomic.AddInt32(&readers, 1)
				if atomic.LoadInt32(&writers) != 0 {
					t.Errorf("reader observed active writer")
					rw.RUnlock()
					return
				}
				if n <= 0 {
					t.Errorf("invalid reader count")
					rw.RUnlock()
					return
				}
				atomic.AddInt32(&readers, -1)
				rw.RUnlock()
			}
		}()
	}

	for range writerN {
		go func() {
			defer wg.Done()
			for range loops {
				rw.Lock()
				if atomic.AddInt32(&writers, 1) != 1 {
					t.Errorf("multiple writers active")
					rw.Unlock()
					return
				}
				if atomic.LoadInt32(&readers) != 0 {
					t.Errorf("writer observed active readers")
					rw.Unlock()
					return
				}
				atomic.AddInt32(&writers, -1)
				rw.Unlock()
			}
		}()
	}

	wg.Wait()
}

func TestSpinRWLock_WriterWaitsForReaders(t *testing.T) {
	var rw SpinRWLock
	rw.RLock()

	done := make(chan struct{})
	go func() {
		rw.Lock()
		close(done)
		rw.Unlock()
	}()

	select {
	case <-done:
		t.Fatal("Lock acquired while RLock held")
	case <-time.After(10 * time.Millisecond):
	}
	rw.RUnlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock not acquired after RUnlock")
	}
}

func TestConfig_Locker(t *testing.T) {
	if _, ok := newConfig(nil).locker().(*sync.RWMutex); !ok {
		t.Fatal("default locker should be *sync.RWMutex")
	}
	if _, ok := newConfig([]func(*Config){WithSpinLocker()}).locker().(*SpinRWLock); !ok {
		t.Fatal("WithSpinLocker should build a *SpinRWLock")
	}
	nilLocker := WithLocker(func() RWLocker { return nil })
	if _, ok := newConfig([]func(*Config){nilLocker}).locker().(*sync.RWMutex); !ok {
		t.Fatal("a nil locker should fall back to *sync.RWMutex")
	}
	if got := newConfig(nil).name; got != "unnamed" {
		t.Fatalf("default name = %q", got)
	}
}
