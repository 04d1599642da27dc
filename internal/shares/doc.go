// Package shares implements the (2,3) threshold split of a voucher's
// signing scalar.
//
// A degree-1 polynomial f over the Ed25519 scalar field has f(0) equal to
// the scalar; the anchor, traveler and witness shares are f(1), f(2) and
// f(3). Any two shares rebuild f(0) by Lagrange interpolation; one share on
// its own is uniformly distributed and reveals nothing. Shares and scalars
// travel as 32-byte little-endian canonical encodings.
//
// Intermediate field elements are zeroed before every return. Rebuilt
// scalars are handed to the caller, who must zero them on every path
// (crypto.WithVoucherKey does this).
package shares
