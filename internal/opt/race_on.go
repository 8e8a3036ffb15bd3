//go:build race

package opt

// Race_ reports whether the race detector is enabled. Tests use it to
// shrink workloads that would otherwise run for minutes under -race.
const Race_ = true
