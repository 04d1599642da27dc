package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// VoucherID is the Ed25519 public key of a voucher. It identifies the
// voucher everywhere: ledger keys, wire messages and the public log.
type VoucherID [32]byte

// String returns the lowercase hex form of the id.
func (id VoucherID) String() string { return hex.EncodeToString(id[:]) }

// Slice returns the id as a []byte.
func (id VoucherID) Slice() []byte { return id[:] }

// IsZero reports whether the id is unset.
func (id VoucherID) IsZero() bool { return id == VoucherID{} }

// ParseVoucherID decodes a 64-character hex voucher id.
func ParseVoucherID(s string) (VoucherID, error) {
	var id VoucherID
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return id, fmt.Errorf("voucher id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("voucher id: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so ids key JSON maps.
func (id VoucherID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *VoucherID) UnmarshalText(b []byte) error {
	parsed, err := ParseVoucherID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Amount is a voucher value in minor units (hundredths). It is the only
// authoritative representation of value.
type Amount uint32

// Display renders the amount as a decimal string such as "5.00". The result
// is a view for humans and is never parsed back into protocol data.
func (a Amount) Display() string {
	return fmt.Sprintf("%d.%02d", a/100, a%100)
}

// ParseAmount converts a decimal string with at most two fractional digits
// into minor units without floating-point arithmetic.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount: empty")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("amount %q: want at most two decimals", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
	} else {
		frac = "00"
	}
	w, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	f, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	total := w*100 + f
	if total > uint64(^uint32(0)) {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	return Amount(total), nil
}

// Status is the custody status of a voucher.
type Status string

const (
	StatusActive  Status = "active"
	StatusLocked  Status = "locked"
	StatusSpent   Status = "spent"
	StatusBurned  Status = "burned"
	StatusRevoked Status = "revoked"
)

// String returns the string form of the status.
func (s Status) String() string { return string(s) }

// Terminal reports whether no further transfer is possible.
func (s Status) Terminal() bool {
	return s == StatusSpent || s == StatusBurned || s == StatusRevoked
}

// Role is the side a device plays in a handshake.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
)

// String returns the string form of the role.
func (r Role) String() string { return string(r) }
