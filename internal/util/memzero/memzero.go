// Package memzero clears key material held in byte slices.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites every given buffer with zeros. Nil and empty buffers are
// skipped.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
		runtime.KeepAlive(b)
	}
}
