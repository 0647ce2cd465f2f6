//go:build !debug

package assert

func assertTrue(cond bool, msg string) {}

func assertTruef(cond bool, format string, args ...interface{}) {}

func assertNoError(err error) {}
