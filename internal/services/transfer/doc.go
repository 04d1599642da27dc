// Package transfer drives the offline handshake that moves a voucher's
// traveler share from one device to another.
//
// The donor locks the voucher, seals the traveler share under a key
// derived from the witness share, and signs the offer with the voucher key
// rebuilt from traveler and witness. The receiver checks the offer
// signature and freshness, fetches the witness record from the public log,
// unseals, proves possession by signing the donor's challenge, and commits
// before the acknowledgement leaves the device. The donor commits only
// after verifying that acknowledgement. A handshake that stalls is undone
// by lock expiry alone.
//
// The rebuilt voucher key only ever exists inside crypto.WithVoucherKey.
package transfer
