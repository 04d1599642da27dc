package interfaces

import (
	"time"

	domaintypes "bons/internal/domain/types"
)

// IdentityStore persists the issuer's long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// Ledger is the per-device voucher and transfer-lock store. CommitReceive
// is the single atomic commit point of a handshake.
type Ledger interface {
	Lock(
		id domaintypes.VoucherID,
		challenge domaintypes.Challenge,
		ttl time.Duration,
		role domaintypes.Role,
		incoming *domaintypes.Voucher,
	) (domaintypes.LockedVoucher, error)
	MarkOffered(id domaintypes.VoucherID, challenge domaintypes.Challenge, offer []byte) error
	Cancel(id domaintypes.VoucherID) error
	CommitReceive(id domaintypes.VoucherID, challenge domaintypes.Challenge) (bool, error)
	GetLock(id domaintypes.VoucherID) (domaintypes.TransferLock, bool, error)

	Put(v domaintypes.Voucher) error
	Get(id domaintypes.VoucherID) (domaintypes.Voucher, bool, error)
	List() ([]domaintypes.Voucher, error)
}
