// Package ledger is the per-device transfer ledger.
//
// Each voucher lives under "v/<id>" and at most one transfer lock under
// "l/<id>". A lock is the write-ahead record of a handshake: it is written
// before anything is signed, carries the voucher snapshot the handshake
// uses, and is deleted by CommitReceive in the same KV batch that moves the
// voucher to its post-transfer state, or by Cancel. Expiry is a pure
// wall-clock comparison, so an abandoned lock stops blocking the voucher
// without any write; Recover tidies such locks at startup.
package ledger
