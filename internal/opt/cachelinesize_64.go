//go:build guardlock_cachelinesize_64

package opt

// CacheLineSize_ forced to 64 bytes by build tag.
const CacheLineSize_ = 64
