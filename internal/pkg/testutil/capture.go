package testutil

import (
	"bytes"
	"os"
)

// CaptureStdout runs fn with os.Stdout redirected to a pipe and returns what
// fn printed. Stdout is restored even if fn panics.
func CaptureStdout(fn func()) string {
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return ""
	}

	out := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		out <- buf.String()
	}()

	os.Stdout = w
	func() {
		defer func() {
			os.Stdout = orig
			_ = w.Close()
		}()
		fn()
	}()
	return <-out
}
