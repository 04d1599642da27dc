// Package issuance creates, redeems and expires vouchers on the issuer's
// device.
//
// Issue splits a fresh voucher key into anchor, traveler and witness
// shares, publishes the issuer-signed witness record and keeps all three
// locally: the anchor never leaves, the traveler moves with each transfer.
// Redeem proves a returned voucher with anchor and traveler and burns it.
package issuance
