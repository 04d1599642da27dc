// Package crypto exposes the minimal primitives used by bons.
//
// Contents
//
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519, VerifyVoucher)
//   - Scoped use of a reconstructed voucher key (WithVoucherKey) and
//     derivation of the voucher id from a scalar (VoucherPublicKey)
//   - Handshake challenges (NewChallenge)
//   - Best-effort memory wiping for sensitive byte slices (Wipe, WipeShare)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// A voucher scalar is the 32-byte Ed25519 seed of the voucher key. It is
// only ever handled through WithVoucherKey, which zeroes the scalar and the
// expanded private key on return.
package crypto
