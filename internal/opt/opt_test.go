package opt

import (
	"testing"
)

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ == 0 {
		t.Fatal("CacheLineSize_ must not be zero")
	}
	if CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("CacheLineSize_=%d is not a power of two", CacheLineSize_)
	}
}
