package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"bons/internal/domain"
	"bons/internal/util/memzero"
)

// WithVoucherKey expands scalar into the voucher signing key and calls fn
// with it. The scalar and the expanded key are zeroed when fn returns, on
// every path including a panic in fn. The scalar is consumed: callers must
// not use it afterwards.
func WithVoucherKey(scalar []byte, fn func(key ed25519.PrivateKey) error) error {
	defer memzero.Zero(scalar)
	if len(scalar) != ed25519.SeedSize {
		return fmt.Errorf("voucher key: want %d-byte scalar, got %d", ed25519.SeedSize, len(scalar))
	}
	key := ed25519.NewKeyFromSeed(scalar)
	defer memzero.Zero(key)
	return fn(key)
}

// VoucherPublicKey derives the voucher id from a scalar without retaining
// the expanded key.
func VoucherPublicKey(scalar []byte) (domain.VoucherID, error) {
	var id domain.VoucherID
	if len(scalar) != ed25519.SeedSize {
		return id, fmt.Errorf("voucher key: want %d-byte scalar, got %d", ed25519.SeedSize, len(scalar))
	}
	key := ed25519.NewKeyFromSeed(scalar)
	defer memzero.Zero(key)
	copy(id[:], key.Public().(ed25519.PublicKey))
	return id, nil
}

// NewChallenge returns a fresh random handshake challenge.
func NewChallenge() (domain.Challenge, error) {
	var c domain.Challenge
	if _, err := rand.Read(c[:]); err != nil {
		return c, err
	}
	return c, nil
}
