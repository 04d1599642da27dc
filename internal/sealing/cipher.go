package sealing

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/util/memzero"
)

// keyInfo separates this key from any other use of the witness share.
var keyInfo = []byte("bons/share-seal/v2")

// Cipher seals traveler shares for transit.
type Cipher struct {
	rand io.Reader
}

// New returns a Cipher drawing nonces from crypto/rand.
func New() *Cipher {
	return &Cipher{rand: rand.Reader}
}

// NewWithRand returns a Cipher drawing nonces from r.
func NewWithRand(r io.Reader) *Cipher {
	return &Cipher{rand: r}
}

// Seal encrypts traveler under a key derived from witness. The voucher id is
// bound as associated data so a sealed share cannot be moved to another
// voucher's offer.
func (c *Cipher) Seal(id domain.VoucherID, traveler, witness domain.Share) (domain.Sealed, error) {
	var out domain.Sealed
	defer memzero.Zero(traveler[:])

	key, err := deriveKey(id, witness)
	if err != nil {
		return out, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return out, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	if _, err := io.ReadFull(c.rand, out.Nonce[:]); err != nil {
		return out, errors.Wrap(errors.ErrInvalidState, "nonce: "+err.Error())
	}

	sealed := aead.Seal(nil, out.Nonce[:], traveler[:], id[:])
	copy(out.Ciphertext[:], sealed[:domain.ShareSize])
	copy(out.Tag[:], sealed[domain.ShareSize:])
	return out, nil
}

// Open reverses Seal. Every failure, whatever its cause, surfaces as
// ErrAuthenticationFailed from one code path.
func (c *Cipher) Open(id domain.VoucherID, sealed domain.Sealed, witness domain.Share) (domain.Share, error) {
	var out domain.Share

	key, err := deriveKey(id, witness)
	if err != nil {
		return out, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return out, errors.Wrap(errors.ErrAuthenticationFailed, "cipher")
	}

	buf := make([]byte, 0, domain.ShareSize+domain.TagSize)
	buf = append(buf, sealed.Ciphertext[:]...)
	buf = append(buf, sealed.Tag[:]...)
	pt, err := aead.Open(buf[:0], sealed.Nonce[:], buf, id[:])
	if err != nil {
		memzero.Zero(buf[:cap(buf)])
		return out, errors.ErrAuthenticationFailed.New("sealed share does not verify")
	}
	copy(out[:], pt)
	memzero.Zero(buf[:cap(buf)])
	return out, nil
}

// deriveKey is HKDF-SHA256 over the witness share with the voucher id as
// salt.
func deriveKey(id domain.VoucherID, witness domain.Share) ([]byte, error) {
	defer memzero.Zero(witness[:])
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, witness[:], id[:], keyInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		memzero.Zero(key)
		return nil, errors.Wrap(errors.ErrInvalidState, "hkdf: "+err.Error())
	}
	return key, nil
}

// Compile-time assertion that Cipher implements domain.ShareCipher.
var _ domain.ShareCipher = (*Cipher)(nil)
