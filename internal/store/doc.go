// Package store provides persistence for bons.
//
// KV is the generic key-value contract the ledger builds on: point reads,
// prefix iteration and atomic multi-key batches. Backends:
//   - LevelKV: goleveldb on disk, synced batches
//   - FileKV: one JSON file replaced via temp file and rename, optionally
//     sealed under a passphrase
//   - MemKV: an in-memory btree for tests and the demo
//
// IdentityFileStore keeps the issuer's signing key on disk, encrypted with
// a scrypt-derived key under ChaCha20-Poly1305. All types are safe for
// concurrent use.
package store
