package types

import "time"

const (
	NonceSize     = 12
	TagSize       = 16
	SignatureSize = 64
)

// Sealed is a traveler share under authenticated encryption.
type Sealed struct {
	Ciphertext [ShareSize]byte
	Nonce      [NonceSize]byte
	Tag        [TagSize]byte
}

// Offer is the donor's message. The signature covers every preceding field
// of the encoding and is made with the reconstructed voucher key.
type Offer struct {
	Version         uint8
	VoucherID       VoucherID
	Value           Amount
	IssuerPublicKey Ed25519Public
	IssuerName      string
	Sealed          Sealed
	Challenge       Challenge
	Timestamp       uint32
	Signature       [SignatureSize]byte
}

// IssuedAt returns the offer timestamp as a time.
func (o Offer) IssuedAt() time.Time { return time.Unix(int64(o.Timestamp), 0) }

// AckStatus is the status byte of an acknowledgement.
type AckStatus uint8

const AckReceived AckStatus = 0x01

// Ack is the receiver's proof that it reconstructed the voucher key.
type Ack struct {
	VoucherID VoucherID
	Signature [SignatureSize]byte
	Status    AckStatus
}

// WitnessRecord is what an issuer publishes for each voucher. Field order
// is the CBOR array order and must not change.
type WitnessRecord struct {
	_               struct{}      `cbor:",toarray"`
	VoucherID       VoucherID     `json:"voucher_id"`
	Witness         Share         `json:"witness"`
	Value           Amount        `json:"value"`
	IssuerPublicKey Ed25519Public `json:"issuer_public_key"`
	IssuerName      string        `json:"issuer_name"`
	CreatedAt       int64         `json:"created_at"`
	ExpiresAt       int64         `json:"expires_at"`
	IssuerSignature []byte        `json:"issuer_signature"`
}

// EventKind names an audit event.
type EventKind string

const (
	EventIssued      EventKind = "issued"
	EventTransferred EventKind = "transferred"
	EventRedeemed    EventKind = "redeemed"
	EventRevoked     EventKind = "revoked"
)

// AuditEvent is an append-only public log entry. It never carries shares.
type AuditEvent struct {
	ID            string    `json:"id"`
	VoucherID     VoucherID `json:"voucher_id"`
	Kind          EventKind `json:"kind"`
	TransferCount uint32    `json:"transfer_count"`
	At            time.Time `json:"at"`
}
