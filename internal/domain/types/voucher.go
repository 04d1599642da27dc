package types

import "time"

// ShareSize is the byte length of one share: a little-endian scalar of the
// Ed25519 group order field.
const ShareSize = 32

// Share is one point of the degree-1 sharing polynomial. Its x coordinate
// is positional: anchor=1, traveler=2, witness=3.
type Share [ShareSize]byte

// Slice returns the share as a []byte.
func (s *Share) Slice() []byte { return s[:] }

// Clone returns a heap copy of s, or nil.
func (s *Share) Clone() *Share {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// ShareSet is the output of a split.
type ShareSet struct {
	Anchor   Share
	Traveler Share
	Witness  Share
}

// Voucher is the persisted record of one voucher as seen by one device.
type Voucher struct {
	ID              VoucherID     `json:"id"`
	Value           Amount        `json:"value"`
	IssuerPublicKey Ed25519Public `json:"issuer_public_key"`
	IssuerName      string        `json:"issuer_name"`
	CreatedAt       time.Time     `json:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
	Status          Status        `json:"status"`
	TravelerShare   *Share        `json:"traveler_share,omitempty"`
	WitnessShare    *Share        `json:"witness_share,omitempty"`
	AnchorShare     *Share        `json:"anchor_share,omitempty"`
	TransferCount   uint32        `json:"transfer_count"`
}

// Expired reports whether the voucher validity has elapsed at now. A zero
// ExpiresAt never expires.
func (v Voucher) Expired(now time.Time) bool {
	return !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt)
}

// Holding reports whether this device holds the traveler share.
func (v Voucher) Holding() bool { return v.TravelerShare != nil }

// Copy returns a deep copy so callers never alias shares.
func (v Voucher) Copy() Voucher {
	v.TravelerShare = v.TravelerShare.Clone()
	v.WitnessShare = v.WitnessShare.Clone()
	v.AnchorShare = v.AnchorShare.Clone()
	return v
}

// ChallengeSize is the byte length of a handshake challenge.
const ChallengeSize = 16

// Challenge is the single-use nonce binding an offer to its acknowledgement.
type Challenge [ChallengeSize]byte

// LockState tracks how far the owning side got before a restart.
type LockState string

const (
	LockHeld        LockState = "held"
	LockOfferIssued LockState = "offer_issued"
)

// TransferLock is the write-ahead record of an in-flight handshake.
type TransferLock struct {
	VoucherID VoucherID     `json:"voucher_id"`
	Challenge Challenge     `json:"challenge"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
	Role      Role          `json:"role"`
	State     LockState     `json:"state"`
	Snapshot  Voucher       `json:"snapshot"`
	// Offer is the signed offer encoding once the donor produced it, so an
	// interrupted handshake can resume with the same bytes.
	Offer []byte `json:"offer,omitempty"`
}

// ExpiresAt is the wall-clock instant after which the lock is void.
func (l TransferLock) ExpiresAt() time.Time { return l.CreatedAt.Add(l.TTL) }

// Expired is a pure wall-clock check.
func (l TransferLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt())
}

// Remaining is the time left before expiry, never negative.
func (l TransferLock) Remaining(now time.Time) time.Duration {
	d := l.ExpiresAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// LockedVoucher is returned by a successful lock.
type LockedVoucher struct {
	Lock    TransferLock
	Voucher Voucher
}
