// Package wire is the fixed-layout binary codec for handshake messages.
//
// Offer (240 bytes, integers big-endian):
//
//	version(1)=0x02 · voucherId(32) · value(4) · issuerPublicKey(32) ·
//	issuerName(27, UTF-8, NUL padded) · ciphertext(32) · nonce(12) · tag(16) ·
//	challenge(16) · timestamp(4) · signature(64)
//
// The signature covers the first 176 bytes. The 177-byte version 0x01
// layout carries no authenticated value or issuer and is always refused.
//
// Ack (97 bytes): voucherId(32) · signature(64) · status(1).
//
// Encoding is pure and deterministic; decoding checks the exact length for
// the declared version before reading any field.
package wire
