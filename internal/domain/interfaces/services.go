package interfaces

import (
	"context"

	domaintypes "bons/internal/domain/types"
)

// IdentityService creates and loads the issuer identity.
type IdentityService interface {
	GenerateIdentity(passphrase, name string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// ShareCodec splits a voucher scalar into three shares and rebuilds it from
// any two. Returned scalars are owned by the caller, who must zero them.
type ShareCodec interface {
	NewScalar() ([]byte, error)
	Split(scalar []byte) (domaintypes.ShareSet, error)
	Combine(id domaintypes.VoucherID, anchor, traveler, witness *domaintypes.Share) ([]byte, error)
	PublicKey(scalar []byte) (domaintypes.VoucherID, error)
}

// ShareCipher seals the traveler share under a key derived from the witness
// share.
type ShareCipher interface {
	Seal(id domaintypes.VoucherID, traveler, witness domaintypes.Share) (domaintypes.Sealed, error)
	Open(id domaintypes.VoucherID, sealed domaintypes.Sealed, witness domaintypes.Share) (domaintypes.Share, error)
}

// PublicLog is the append-only public store of witness records and audit
// events. Fetch returns a NotFound error for unknown vouchers.
type PublicLog interface {
	Publish(ctx context.Context, rec domaintypes.WitnessRecord) error
	Fetch(ctx context.Context, id domaintypes.VoucherID) (domaintypes.WitnessRecord, error)
	Append(ctx context.Context, ev domaintypes.AuditEvent) error
	Events(ctx context.Context, id domaintypes.VoucherID) ([]domaintypes.AuditEvent, error)
}

// Channel is a byte-exchange primitive: an optical code shown and scanned,
// or a near-field tap. Both directions honour ctx deadlines.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
}
