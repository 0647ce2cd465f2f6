// Package assert provides panic-based sanity checks for programming
// errors (invariant violations that indicate a bug in this repo, not bad
// input), gated by the debug build tag so production builds pay nothing
// for them.
package assert

// True panics with msg if cond is false. In non-debug builds (the
// default) this is a no-op — see assert_release.go.
func True(cond bool, msg string) {
	assertTrue(cond, msg)
}

// Truef panics with a formatted message if cond is false.
func Truef(cond bool, format string, args ...interface{}) {
	assertTruef(cond, format, args...)
}

// NoError panics if err is non-nil, wrapping it as a programming-error
// invariant violation (e.g. "a Finalize-derived structure rejected data
// this package itself produced").
func NoError(err error) {
	assertNoError(err)
}
