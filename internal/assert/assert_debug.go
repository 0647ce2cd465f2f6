//go:build debug

package assert

import "fmt"

func assertTrue(cond bool, msg string) {
	if !cond {
		panic("assert: " + msg)
	}
}

func assertTruef(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("assert: " + fmt.Sprintf(format, args...))
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("assert: unexpected error: %v", err))
	}
}
