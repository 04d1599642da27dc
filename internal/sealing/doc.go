// Package sealing wraps the traveler share for its trip across an optical
// or near-field channel.
//
// The key is HKDF-SHA256(witness share, salt = voucher id,
// info = "bons/share-seal/v2"); the AEAD is ChaCha20-Poly1305 with a fresh
// 96-bit random nonce and the voucher id as associated data. Anyone who
// captures the wire bytes without having synchronised the witness share from
// the public log learns nothing about the traveler share.
package sealing
