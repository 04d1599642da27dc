package crypto

import (
	"runtime"

	"bons/internal/domain"
	"bons/internal/util/memzero"
)

// Wipe zeroes the provided buffer. This is best-effort and aims to
// reduce the chance of the compiler eliding the write.
//
//go:noinline
func Wipe(b []byte) {
	memzero.Zero(b)
	// Ensure b is considered live until after the write.
	runtime.KeepAlive(&b)
}

// WipeShare zeroes a share in place. A nil share is ignored.
func WipeShare(s *domain.Share) {
	if s == nil {
		return
	}
	Wipe(s[:])
}
